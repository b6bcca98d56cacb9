package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/notify"
)

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "factor 가중치 학습",
	Long: `종료된 거래 결과로 factor 가중치를 재학습합니다.

Subcommands:
  optimize    - 전체 진화 사이클 (importance → discovery), --force 로 주기 무시
  importance  - factor 중요도 학습 + 가중치 조정만 실행
  discover    - 신규 factor 후보 탐색만 실행

Example:
  go run ./cmd/limitup feedback optimize
  go run ./cmd/limitup feedback optimize --force`,
}

var (
	feedbackForce bool
	feedbackJSON  bool

	feedbackOptimizeCmd = &cobra.Command{
		Use:   "optimize",
		Short: "전체 진화 사이클",
		RunE:  runFeedbackOptimize,
	}

	feedbackImportanceCmd = &cobra.Command{
		Use:   "importance",
		Short: "factor 중요도 학습",
		RunE:  runFeedbackImportance,
	}

	feedbackDiscoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "신규 factor 탐색",
		RunE:  runFeedbackDiscover,
	}
)

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackOptimizeCmd, feedbackImportanceCmd, feedbackDiscoverCmd)

	feedbackCmd.PersistentFlags().BoolVar(&feedbackJSON, "json", false, "JSON 출력")
	feedbackOptimizeCmd.Flags().BoolVar(&feedbackForce, "force", false, "최소 주기 무시")
}

func runFeedbackOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.optimizer.Evolve(ctx, feedbackForce)
	if errors.Is(err, feedback.ErrInsufficientData) {
		PrintWarning("Not enough closed trades to learn from yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("evolve: %w", err)
	}
	if feedbackJSON {
		return PrintJSON(res)
	}
	if res.Throttled {
		PrintInfo(fmt.Sprintf("Last evolution is recent, next due %s (use --force to override)", res.NextDue.Format("2006-01-02 15:04")))
		return nil
	}

	fmt.Println()
	fmt.Println(notify.Evolution(res).String())
	return nil
}

func runFeedbackImportance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.optimizer.Optimize(ctx)
	return printSession(session, err)
}

func runFeedbackDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.optimizer.DiscoverFactors(ctx)
	return printSession(session, err)
}

func printSession(s *contracts.LearningSession, err error) error {
	if errors.Is(err, feedback.ErrInsufficientData) {
		PrintWarning("Not enough closed trades to learn from yet")
		return nil
	}
	if err != nil {
		return err
	}
	if feedbackJSON {
		return PrintJSON(s)
	}

	PrintHeader("Learning session", map[string]string{
		"ID":     s.ID,
		"Kind":   s.Kind,
		"Model":  s.ModelType,
		"Status": string(s.Status),
	}, "ID", "Kind", "Model", "Status")
	PrintKeyValue("train/test", fmt.Sprintf("%d / %d", s.TrainingSize, s.TestSize), 10)

	keys := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		PrintKeyValue(k, fmt.Sprintf("%.4f", s.Metrics[k]), 10)
	}
	for _, imp := range s.Improvements {
		applied := imp.AppliedWeight
		if applied == 0 {
			applied = imp.SuggestedWeight
		}
		PrintInfo(fmt.Sprintf("%s (%s): %.2f → %.2f", imp.FactorID, imp.Kind, imp.CurrentWeight, applied))
	}
	for _, f := range s.NewFactors {
		PrintInfo(fmt.Sprintf("new factor candidate %s = %s (corr %.3f)", f.FactorID, f.Formula, f.Correlation))
	}
	if s.Message != "" {
		PrintInfo(s.Message)
	}
	return nil
}
