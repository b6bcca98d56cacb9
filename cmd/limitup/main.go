package main

import (
	"os"
	_ "time/tzdata"

	"github.com/wonny/limitup/cmd/limitup/commands"
)

// main is the entry point for the limitup CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/limitup [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
