package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// Client handles communication with the Eastmoney quote API
// ⭐ SSOT: Eastmoney 시세 호출은 이 클라이언트에서만
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	klineURL    string
	snapshotURL string
	loc         *time.Location
}

// NewClient creates a new Eastmoney client
func NewClient(httpClient *httputil.Client, cfg config.EastmoneyConfig, loc *time.Location, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		httpClient:  httpClient,
		logger:      log,
		klineURL:    strings.TrimRight(cfg.KlineURL, "/"),
		snapshotURL: strings.TrimRight(cfg.SnapshotURL, "/"),
		loc:         loc,
	}
}

var _ marketdata.SecondarySource = (*Client)(nil)

// SecID converts "600519.SH" into Eastmoney's "1.600519"
func SecID(symbol string) (string, error) {
	code := contracts.SymbolCode(symbol)
	i := strings.IndexByte(symbol, '.')
	if i < 0 || len(code) != 6 {
		return "", fmt.Errorf("eastmoney: unsupported symbol %q", symbol)
	}
	switch strings.ToUpper(symbol[i+1:]) {
	case "SH":
		return "1." + code, nil
	case "SZ", "BJ":
		return "0." + code, nil
	default:
		return "", fmt.Errorf("eastmoney: unsupported exchange in %q", symbol)
	}
}

func (c *Client) getJSON(ctx context.Context, fullURL string, dest interface{}) error {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %v", marketdata.ErrMalformed, err)
	}
	return nil
}

type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// Kline returns daily bars ascending by date
func (c *Client) Kline(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBar, error) {
	return c.kline(ctx, symbol, from, to)
}

// IndexKline returns index daily bars ascending by date
func (c *Client) IndexKline(ctx context.Context, code string, from, to time.Time) ([]marketdata.DailyBar, error) {
	return c.kline(ctx, code, from, to)
}

func (c *Client) kline(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBar, error) {
	secid, err := SecID(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("secid", secid)
	params.Set("fields1", "f1,f2,f3")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f59")
	params.Set("klt", "101") // 일봉
	params.Set("fqt", "0")   // 무수정
	params.Set("beg", from.Format(contracts.DateLayout))
	params.Set("end", to.Format(contracts.DateLayout))

	var r klineResponse
	if err := c.getJSON(ctx, c.klineURL+"/api/qt/stock/kline/get?"+params.Encode(), &r); err != nil {
		return nil, fmt.Errorf("eastmoney kline %s: %w", symbol, err)
	}
	if r.Data == nil || len(r.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney kline %s: %w", symbol, marketdata.ErrNoData)
	}

	bars, err := parseKlines(symbol, r.Data.Klines, c.loc)
	if err != nil {
		return nil, fmt.Errorf("eastmoney kline %s: %w", symbol, err)
	}
	return bars, nil
}

// parseKlines decodes "date,open,close,high,low,vol,amount,pct" rows.
// Volume arrives in lots (100 shares).
func parseKlines(symbol string, rows []string, loc *time.Location) ([]marketdata.DailyBar, error) {
	out := make([]marketdata.DailyBar, 0, len(rows))
	for _, row := range rows {
		cols := strings.Split(row, ",")
		if len(cols) < 7 {
			return nil, fmt.Errorf("%w: short kline row %q", marketdata.ErrMalformed, row)
		}
		d, err := time.ParseInLocation("2006-01-02", cols[0], loc)
		if err != nil {
			return nil, fmt.Errorf("%w: bad kline date %q", marketdata.ErrMalformed, cols[0])
		}

		vals := make([]float64, len(cols))
		for i := 1; i < len(cols); i++ {
			vals[i], _ = strconv.ParseFloat(cols[i], 64)
		}
		bar := marketdata.DailyBar{
			Symbol: symbol,
			Date:   d,
			Open:   vals[1],
			Close:  vals[2],
			High:   vals[3],
			Low:    vals[4],
			Volume: vals[5] * 100,
			Amount: vals[6],
		}
		if len(cols) > 7 {
			bar.PctChange = vals[7]
		}
		out = append(out, bar)
	}

	for i := 1; i < len(out); i++ {
		out[i].PreClose = out[i-1].Close
	}
	return out, nil
}

type snapshotResponse struct {
	RC   int                        `json:"rc"`
	Data map[string]json.RawMessage `json:"data"`
}

// Snapshot returns today's quote with the auction match as the open price
func (c *Client) Snapshot(ctx context.Context, symbol string) (*marketdata.AuctionQuote, error) {
	secid, err := SecID(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("secid", secid)
	params.Set("fltt", "2")
	params.Set("fields", "f43,f46,f47,f48,f50,f60,f168")

	var r snapshotResponse
	if err := c.getJSON(ctx, c.snapshotURL+"/api/qt/stock/get?"+params.Encode(), &r); err != nil {
		return nil, fmt.Errorf("eastmoney snapshot %s: %w", symbol, err)
	}
	if len(r.Data) == 0 {
		return nil, fmt.Errorf("eastmoney snapshot %s: %w", symbol, marketdata.ErrNoData)
	}

	open, ok := field(r.Data, "f46")
	if !ok || open <= 0 {
		// 집합경쟁 체결 전
		return nil, fmt.Errorf("eastmoney snapshot %s: no auction match yet: %w", symbol, marketdata.ErrNoData)
	}
	preClose, ok := field(r.Data, "f60")
	if !ok || preClose <= 0 {
		return nil, fmt.Errorf("eastmoney snapshot %s: %w: missing pre close", symbol, marketdata.ErrMalformed)
	}

	q := &marketdata.AuctionQuote{
		Symbol:   symbol,
		Price:    open,
		PreClose: preClose,
	}
	if v, ok := field(r.Data, "f47"); ok {
		q.Volume = v * 100
	}
	q.Amount, _ = field(r.Data, "f48")
	q.TurnoverRate, _ = field(r.Data, "f168")
	q.VolumeRatio, q.HasVolumeRatio = field(r.Data, "f50")
	return q, nil
}

// field reads a numeric field; Eastmoney sends "-" for missing values
func field(data map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
