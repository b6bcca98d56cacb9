package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/api"
	"github.com/wonny/limitup/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `상태 조회 API 서버를 시작합니다.

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus metrics
  GET  /ws                              - 실시간 알림 (websocket)
  GET  /api/recommendations             - 추천 목록 (?date=&t1=&status=)
  GET  /api/recommendations/{id}        - 추천 상세 + 체결
  GET  /api/performance                 - 성과 리포트 (?from=&to=)
  GET  /api/factors                     - factor 가중치
  GET  /api/learning/latest             - 최근 학습 세션
  GET  /api/scheduler/jobs              - 스케줄러 작업 (scheduler start --serve)
  POST /api/scheduler/jobs/{name}/run   - 작업 즉시 실행

Example:
  go run ./cmd/limitup api
  go run ./cmd/limitup api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== limitup API Server ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	server := a.startAPI(nil)
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	waitForSignal()
	return shutdownAPI(a, server)
}

// startAPI serves the status API in the background; jobs may be nil
func (a *app) startAPI(jobs handlers.JobController) *api.Server {
	router := api.NewRouter(api.Handlers{
		Store:           a.store,
		Recommendations: handlers.NewRecommendationHandler(a.store, a.loc, a.log),
		Performance:     handlers.NewPerformanceHandler(a.tracker, a.loc, a.log),
		Learning:        handlers.NewLearningHandler(a.store, a.log),
		Scheduler:       handlers.NewSchedulerHandler(jobs, a.log),
		Feed:            a.hub.ServeWS,
		Metrics:         a.metrics.Handler(),
	}, a.log)

	server := api.New(a.cfg, a.log, router)
	server.OnShutdown(a.hub.Close)
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()
	return server
}

func shutdownAPI(a *app, server *api.Server) error {
	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM
func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}
