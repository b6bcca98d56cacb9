package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// Example_basic demonstrates basic HTTP client usage
func Example_basic() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create HTTP client (SSOT)
	client := httputil.New(cfg, log).
		WithRetry(2, 500*time.Millisecond).
		WithLocalLimit(3, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.PostJSON(ctx, "http://api.tushare.pro", map[string]interface{}{
		"api_name": "trade_cal",
		"params":   map[string]string{"exchange": "SSE"},
	})
	if err != nil {
		fmt.Printf("request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("status: %d\n", resp.StatusCode)
}
