package tushare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
)

// Client handles communication with the Tushare Pro HTTP API
// ⭐ SSOT: Tushare Pro 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	token      string
	loc        *time.Location
}

// NewClient creates a new Tushare Pro client
func NewClient(httpClient *httputil.Client, cfg config.TushareConfig, loc *time.Location, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		loc:        loc,
	}
}

var _ marketdata.PrimarySource = (*Client)(nil)

// request is the Tushare Pro request envelope
type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// response is the Tushare Pro response envelope
type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Fields []string        `json:"fields"`
		Items  [][]interface{} `json:"items"`
	} `json:"data"`
}

// APIError is a non-zero code answered by Tushare
type APIError struct {
	API  string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tushare %s: code %d: %s", e.API, e.Code, e.Msg)
}

// query calls one API and returns its table. An empty table is marketdata.ErrNoData.
func (c *Client) query(ctx context.Context, api string, params map[string]string, fields string) (*table, error) {
	if c.token == "" {
		return nil, fmt.Errorf("tushare %s: token not configured", api)
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL, request{
		APIName: api,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		return nil, fmt.Errorf("tushare %s: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tushare %s: unexpected status code: %d", api, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tushare %s: failed to read response body: %w", api, err)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("tushare %s: %w: %v", api, marketdata.ErrMalformed, err)
	}
	if r.Code != 0 {
		return nil, &APIError{API: api, Code: r.Code, Msg: r.Msg}
	}
	if r.Data == nil || len(r.Data.Items) == 0 {
		return nil, fmt.Errorf("tushare %s: %w", api, marketdata.ErrNoData)
	}

	t := newTable(r.Data.Fields, r.Data.Items, c.loc)
	c.logger.WithFields(map[string]interface{}{
		"api":  api,
		"rows": t.Len(),
	}).Debug("Tushare query completed")
	return t, nil
}

func fmtDate(t time.Time) string {
	return t.Format(contracts.DateLayout)
}
