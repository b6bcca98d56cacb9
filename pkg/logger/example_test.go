package logger_test

import (
	"errors"
	"time"

	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Scheduler started")
	log.WithField("provider", "tushare").Warn("Provider unavailable, trying next")
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	log.WithDate(time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC)).
		WithSymbol("600519.SH").
		WithField("score", 86.4).
		Info("Candidate scored")

	log.WithComponent("store").
		WithError(errors.New("database is locked")).
		Warn("Write retry scheduled")
}
