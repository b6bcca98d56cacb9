package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/notify"
)

// perfCmd represents the perf command
var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "성과 추적",
	Long: `평가된 추천의 T+1 매수 / T+2 매도 결과를 추적하고 리포트합니다.

Subcommands:
  sync     - 기간 내 추천의 체결/수익률 기록
  report   - 성과 리포트 (승률, 수익률, 점수 구간별 통계)
  recalc   - 추천 한 건의 성과 재계산

Example:
  go run ./cmd/limitup perf sync --from 20240201 --to 20240229
  go run ./cmd/limitup perf report
  go run ./cmd/limitup perf recalc 5f1c2d3e4a5b6c7d`,
}

var (
	perfFrom string
	perfTo   string
	perfJSON bool

	perfSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "성과 동기화",
		RunE:  runPerfSync,
	}

	perfReportCmd = &cobra.Command{
		Use:   "report",
		Short: "성과 리포트",
		RunE:  runPerfReport,
	}

	perfRecalcCmd = &cobra.Command{
		Use:   "recalc [recommendation_id]",
		Short: "성과 재계산",
		Args:  cobra.ExactArgs(1),
		RunE:  runPerfRecalc,
	}
)

func init() {
	rootCmd.AddCommand(perfCmd)
	perfCmd.AddCommand(perfSyncCmd, perfReportCmd, perfRecalcCmd)

	perfCmd.PersistentFlags().StringVar(&perfFrom, "from", "", "시작 거래일 YYYYMMDD (기본: lookback)")
	perfCmd.PersistentFlags().StringVar(&perfTo, "to", "", "종료 거래일 YYYYMMDD (기본: 오늘)")
	perfCmd.PersistentFlags().BoolVar(&perfJSON, "json", false, "JSON 출력")
}

// perfRange resolves --from/--to against the tracker lookback
func (a *app) perfRange() (contracts.DateRange, error) {
	r := a.tracker.Lookback()
	if perfFrom != "" {
		d, err := parseDate(perfFrom, a.loc, time.Now())
		if err != nil {
			return r, err
		}
		r.From = d
	}
	if perfTo != "" {
		d, err := parseDate(perfTo, a.loc, time.Now())
		if err != nil {
			return r, err
		}
		r.To = d
	}
	if r.From.After(r.To) {
		return r, fmt.Errorf("--from %s is after --to %s", formatDate(r.From), formatDate(r.To))
	}
	return r, nil
}

func runPerfSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.perfRange()
	if err != nil {
		return err
	}

	res, err := a.tracker.Sync(ctx, r.From, r.To)
	if err != nil {
		return fmt.Errorf("sync performance: %w", err)
	}
	if perfJSON {
		return PrintJSON(res)
	}

	PrintHeader("Performance sync", map[string]string{
		"Period": formatDate(r.From) + " ~ " + formatDate(r.To),
	}, "Period")
	PrintKeyValue("checked", fmt.Sprintf("%d", res.Checked), 8)
	PrintKeyValue("closed", fmt.Sprintf("%d", res.Closed), 8)
	PrintKeyValue("pending", fmt.Sprintf("%d", res.Pending), 8)
	PrintKeyValue("skipped", fmt.Sprintf("%d", res.Skipped), 8)
	PrintKeyValue("kept", fmt.Sprintf("%d", res.Kept), 8)
	for _, p := range res.Positions {
		if p.Reason != "" {
			PrintInfo(fmt.Sprintf("%s %s: %s", p.Symbol, p.Outcome, p.Reason))
		}
	}
	fmt.Println()
	PrintSuccess("Performance synced")
	return nil
}

func runPerfReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.perfRange()
	if err != nil {
		return err
	}

	rep, err := a.tracker.Report(ctx, r)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if perfJSON {
		return PrintJSON(rep)
	}

	fmt.Println()
	fmt.Println(notify.Performance(rep).String())
	return nil
}

func runPerfRecalc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pos, err := a.tracker.Recalculate(ctx, args[0])
	if err != nil {
		return fmt.Errorf("recalculate %s: %w", args[0], err)
	}
	if perfJSON {
		return PrintJSON(pos)
	}

	PrintKeyValue("symbol", pos.Symbol, 8)
	PrintKeyValue("outcome", pos.Outcome, 8)
	if pos.Reason != "" {
		PrintKeyValue("reason", pos.Reason, 8)
	}
	if pos.Record != nil {
		PrintKeyValue("return", fmt.Sprintf("%.2f%%", pos.Record.ReturnPct), 8)
	}
	return nil
}
