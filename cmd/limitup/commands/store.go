package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/limitup/internal/store"
)

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "저장소 관리",
	Long: `추천/체결/성과/학습 기록 저장소를 관리합니다.

Subcommands:
  init     - 스키마 생성 + 기본 factor 가중치 시드
  cleanup  - 보존기간이 지난 기록 삭제
  backup   - SQLite 스냅샷 백업 (BACKUP_DIR, BACKUP_KEEP 개 보관)

Example:
  go run ./cmd/limitup store init
  go run ./cmd/limitup store cleanup
  go run ./cmd/limitup store backup`,
}

var (
	storeInitCmd = &cobra.Command{
		Use:   "init",
		Short: "스키마 생성 + 시드",
		RunE:  runStoreInit,
	}

	storeCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "보존기간 정리",
		RunE:  runStoreCleanup,
	}

	storeBackupCmd = &cobra.Command{
		Use:   "backup",
		Short: "SQLite 백업",
		RunE:  runStoreBackup,
	}
)

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeInitCmd, storeCleanupCmd, storeBackupCmd)
}

func runStoreInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// store.Open applies the schema and seeds default factors
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	weights, err := a.store.GetFactorWeights(ctx)
	if err != nil {
		return fmt.Errorf("read factor weights: %w", err)
	}

	PrintHeader("Store initialized", map[string]string{
		"Driver": a.cfg.Store.Driver,
		"Path":   a.cfg.Store.SQLitePath,
	}, "Driver", "Path")
	widths := []int{24, 8, 8}
	PrintTableHeader([]string{"FACTOR", "WEIGHT", "ACTIVE"}, widths)
	for _, w := range weights {
		PrintTableRow([]string{w.FactorID, fmt.Sprintf("%.2f", w.Weight), fmt.Sprintf("%t", w.IsActive)}, widths)
	}
	return nil
}

func runStoreCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.store.Cleanup(ctx, a.strategy.Retention, time.Now())
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	PrintKeyValue("recommendations", fmt.Sprintf("%d", res.Recommendations), 17)
	PrintKeyValue("performance", fmt.Sprintf("%d", res.Performance), 17)
	PrintKeyValue("trades", fmt.Sprintf("%d", res.Trades), 17)
	PrintKeyValue("learning_sessions", fmt.Sprintf("%d", res.LearningSessions), 17)
	PrintSuccess(fmt.Sprintf("Removed %d expired row(s)", res.Total()))
	return nil
}

func runStoreBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := store.Backup(ctx, a.store, a.cfg.Store.BackupDir, a.cfg.Store.BackupKeep, time.Now())
	if errors.Is(err, store.ErrBackupUnsupported) {
		PrintWarning("Backup is only supported for the sqlite driver; use pg_dump for postgres")
		return nil
	}
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	PrintSuccess("Backup written to " + path)
	return nil
}
