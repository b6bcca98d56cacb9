package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/api/handlers"
	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작 (--serve 로 API 서버 동시 실행)
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (동기)
  status  - 실행 중인 스케줄러의 작업 상태 조회

Example:
  go run ./cmd/limitup scheduler start --serve
  go run ./cmd/limitup scheduler list
  go run ./cmd/limitup scheduler run performance_sync`,
}

var (
	schedulerServe bool
	statusAddr     string

	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업 (거래소 시간대):
- t_day_scoring: 평일 T일 점수화 (기본 20:00)
- t1_auction: 평일 집합경쟁 윈도우 직전 (기본 09:24:30)
- performance_sync: 평일 성과 추적 (기본 16:30)
- factor_review: 주 1회 factor 재학습 (기본 토요일 16:30)
- store_maintenance: 매일 보존기간 정리 + 백업 (기본 02:00)
- cache_cleanup: 5분마다 (캐시 정리)

같은 작업은 겹쳐 실행되지 않습니다. 스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerStartCmd.Flags().BoolVar(&schedulerServe, "serve", false, "API 서버 동시 실행")
	schedulerStatusCmd.Flags().StringVar(&statusAddr, "addr", "", "스케줄러 API 주소 (기본: http://localhost:PORT)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== limitup Scheduler ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched.List())

	var stopAPI func() error
	if schedulerServe {
		server := a.startAPI(sched)
		stopAPI = func() error { return shutdownAPI(a, server) }
		fmt.Printf("\n✅ API running on http://localhost:%s\n", a.cfg.Port)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	waitForSignal()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	if stopAPI != nil {
		return stopAPI()
	}
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(sched.List())
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := statusAddr
	if addr == "" {
		addr = "http://localhost:" + cfg.Port
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	client := httputil.NewWithTimeout(cfg, logger.New(cfg), 5*time.Second).DisableRetry()
	resp, err := client.Get(ctx, strings.TrimRight(addr, "/")+"/api/scheduler/jobs")
	if err != nil {
		return fmt.Errorf("query scheduler at %s (is `scheduler start --serve` running?): %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query scheduler at %s: HTTP %d", addr, resp.StatusCode)
	}

	var body struct {
		Jobs []handlers.JobStatus `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode scheduler status: %w", err)
	}

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, job := range body.Jobs {
		fmt.Printf("📊 %s\n", job.Name)
		fmt.Printf("   Schedule: %s\n", job.Schedule)
		if job.Next != nil {
			fmt.Printf("   Next Run: %s\n", job.Next.Format("2006-01-02 15:04:05"))
		}
		if job.Running {
			fmt.Println("   Running: yes")
		}

		stat := job.Stats
		if stat == nil {
			fmt.Println()
			continue
		}
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		fmt.Printf("   Skipped: %d\n", stat.SkippedCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}

		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

func printJobs(jobs []scheduler.JobInfo) {
	fmt.Println("\nRegistered jobs:")
	widths := []int{18, 20, 20}
	PrintTableHeader([]string{"NAME", "SCHEDULE", "NEXT"}, widths)
	for _, j := range jobs {
		next := "-"
		if j.Next != nil {
			next = j.Next.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{j.Name, j.Schedule, next}, widths)
		if j.Description != "" {
			fmt.Printf("  %s\n", j.Description)
		}
	}
}
