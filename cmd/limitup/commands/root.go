package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "limitup",
	Short: "A-share 涨停 T/T+1 추천 시스템",
	Long: `limitup Unified CLI

T일 장 마감 후 涨停 종목을 점수화하고,
T+1 집합경쟁(09:25~09:30) 구간에서 매수 여부를 결정합니다.

Usage:
  go run ./cmd/limitup [command]

Examples:
  go run ./cmd/limitup run score --date 20240221
  go run ./cmd/limitup run evaluate --date 20240222
  go run ./cmd/limitup scheduler start --serve
  go run ./cmd/limitup perf report --from 20240101`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
