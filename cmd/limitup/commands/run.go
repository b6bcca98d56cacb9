package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파이프라인 수동 실행",
	Long: `T일 점수화와 T+1 집합경쟁 평가를 수동으로 실행합니다.

Subcommands:
  score     - T일 涨停 종목 점수화 + 추천 저장
  evaluate  - T+1 집합경쟁 평가 (--wait 로 윈도우 대기)
  full      - T일 점수화 후 T+1 평가 (이력 데이터)
  test      - 고정 날짜쌍(20240221/20240222)으로 전체 실행

Example:
  go run ./cmd/limitup run score --date 20240221
  go run ./cmd/limitup run evaluate --date 20240222
  go run ./cmd/limitup run full --date 20240221
  go run ./cmd/limitup run test`,
}

var (
	runDate    string
	runWait    bool
	runJSON    bool
	runTimeout time.Duration

	runScoreCmd = &cobra.Command{
		Use:   "score",
		Short: "T일 점수화",
		RunE:  runScore,
	}

	runEvaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "T+1 집합경쟁 평가",
		RunE:  runEvaluate,
	}

	runFullCmd = &cobra.Command{
		Use:   "full",
		Short: "T일 + T+1 전체 실행",
		RunE:  runFull,
	}

	runTestCmd = &cobra.Command{
		Use:   "test",
		Short: "고정 날짜쌍 테스트 실행",
		RunE:  runTest,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runScoreCmd, runEvaluateCmd, runFullCmd, runTestCmd)

	runCmd.PersistentFlags().StringVar(&runDate, "date", "", "거래일 YYYYMMDD (기본: 오늘)")
	runCmd.PersistentFlags().BoolVar(&runJSON, "json", false, "JSON 출력")
	runCmd.PersistentFlags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "실행 제한 시간")
	runEvaluateCmd.Flags().BoolVar(&runWait, "wait", false, "집합경쟁 윈도우까지 대기")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDate(runDate, a.loc, time.Now())
	if err != nil {
		return err
	}

	res, err := a.orchestrator.RunTDay(ctx, date)
	if err != nil {
		return fmt.Errorf("t-day run: %w", err)
	}
	if runJSON {
		return PrintJSON(res)
	}
	printTDay(res)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDate(runDate, a.loc, time.Now())
	if err != nil {
		return err
	}

	res, err := a.orchestrator.RunAuction(ctx, date, runWait)
	if err != nil {
		return fmt.Errorf("auction run: %w", err)
	}
	if runJSON {
		return PrintJSON(res)
	}
	printAuction(res)
	return nil
}

func runFull(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDate(runDate, a.loc, time.Now())
	if err != nil {
		return err
	}

	res, err := a.orchestrator.Full(ctx, date)
	if err != nil {
		return fmt.Errorf("full run: %w", err)
	}
	return printFull(res)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orchestrator.Test(ctx, a.loc)
	if err != nil {
		return fmt.Errorf("test run: %w", err)
	}
	return printFull(res)
}

func printFull(res *pipeline.FullResult) error {
	if runJSON {
		return PrintJSON(res)
	}
	printTDay(res.TDay)
	if res.Auction != nil {
		printAuction(res.Auction)
	}
	return nil
}

func printTDay(res *pipeline.TDayResult) {
	PrintHeader("T-day scoring", map[string]string{
		"Run":  res.RunID,
		"Date": res.Date.Format(contracts.DateLayout),
		"T+1":  formatDate(res.T1Date),
	}, "Run", "Date", "T+1")

	if res.Skipped {
		PrintWarning("Skipped: " + res.Reason)
		return
	}
	if res.Scoring != nil {
		PrintKeyValue("limit-ups", fmt.Sprintf("%d", res.Scoring.Total), 10)
		PrintKeyValue("scored", fmt.Sprintf("%d", len(res.Scoring.Scored)), 10)
	}
	if res.Condition != nil {
		PrintKeyValue("market", fmt.Sprintf("filter=%t risk=%s max_position=%.2f", res.Condition.MarketFilter, res.Condition.RiskLevel, res.Condition.MaxPosition), 10)
	}
	fmt.Println()
	PrintRecommendations(res.Recommendations)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d recommendation(s) handed to %s in %s", len(res.Recommendations), formatDate(res.T1Date), res.Duration.Round(time.Millisecond)))
}

func printAuction(res *pipeline.AuctionResult) {
	fields := map[string]string{
		"Run":  res.RunID,
		"Date": res.Date.Format(contracts.DateLayout),
	}
	if res.Outcome != nil {
		fields["Mode"] = string(res.Outcome.Mode)
	}
	PrintHeader("T+1 auction evaluation", fields, "Run", "Date", "Mode")

	switch {
	case res.Skipped:
		PrintWarning("Skipped: " + res.Reason)
		return
	case res.Blocked():
		PrintWarning("Blocked: " + res.Outcome.Reason)
		return
	}

	widths := []int{10, 8, 8, 8, 8, 10}
	PrintTableHeader([]string{"SYMBOL", "AUCTION", "FINAL", "ACTION", "CONF", "POSITION"}, widths)
	for _, p := range res.Picks {
		PrintTableRow([]string{
			p.Recommendation.Symbol,
			fmt.Sprintf("%.1f", p.AuctionScore),
			fmt.Sprintf("%.1f", p.FinalScore),
			string(p.Decision.Action),
			string(p.Decision.Confidence),
			fmt.Sprintf("%.0f%%", p.Decision.Position*100),
		}, widths)
	}
	if res.Outcome != nil {
		for _, d := range res.Outcome.Dropped {
			PrintInfo(fmt.Sprintf("dropped %s: %s", d.Symbol, d.Reason))
		}
	}
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d pick(s) in %s", len(res.Picks), res.Duration.Round(time.Millisecond)))
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format(contracts.DateLayout)
}
