package sentiment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/internal/sentiment"
	"github.com/wonny/limitup/pkg/logger"
)

type stubHeadlines struct {
	lines []string
	err   error
}

func (s stubHeadlines) Headlines(ctx context.Context, limit int) ([]string, error) {
	if len(s.lines) > limit {
		return s.lines[:limit], s.err
	}
	return s.lines, s.err
}

var day = mdtest.D("20240222")

func gateway(p *mdtest.Primary) *marketdata.Gateway {
	return marketdata.NewGateway(p, nil, fetch.NewCache(logger.Nop()), fetch.Options{Timeout: time.Second}, day.Location())
}

func primaryWith(up, down int) *mdtest.Primary {
	p := mdtest.NewPrimary()
	rows := make([]contracts.Candidate, up)
	for i := range rows {
		rows[i].Symbol = "600000.SH"
	}
	p.LimitUpRows["20240222"] = rows
	p.LimitDowns["20240222"] = down
	return p
}

func TestBreadth(t *testing.T) {
	assert.Equal(t, 50.0, sentiment.Breadth(0, 0))
	assert.Equal(t, 100.0, sentiment.Breadth(10, 0))
	assert.Equal(t, 75.0, sentiment.Breadth(30, 10))
	assert.Equal(t, 0.0, sentiment.Breadth(0, 5))
}

func TestTone(t *testing.T) {
	tone, pos, neg := sentiment.Tone([]string{
		"券商看好半导体板块 多股涨停",
		"机构减持 风险提示",
		"沪指窄幅震荡",
		"Analysts upgrade China tech, bullish",
	})
	assert.Equal(t, 2, pos)
	assert.Equal(t, 1, neg)
	assert.InDelta(t, 50+0.25*50, tone, 1e-9)

	tone, _, _ = sentiment.Tone(nil)
	assert.Equal(t, sentiment.Neutral, tone)
}

func TestAnalyzer_Read(t *testing.T) {
	a := sentiment.NewAnalyzer(gateway(primaryWith(30, 10)), stubHeadlines{lines: []string{"利好频出 市场强势"}}, 10, logger.Nop())

	r := a.Read(context.Background(), day)
	assert.Equal(t, 30, r.LimitUps)
	assert.Equal(t, 10, r.LimitDowns)
	assert.Equal(t, 75.0, r.Breadth)
	assert.Equal(t, 100.0, r.Tone)
	assert.InDelta(t, 75*0.7+100*0.3, r.Score, 1e-9)
	assert.False(t, r.Degraded)
}

func TestAnalyzer_NoHeadlinesIsBreadthOnly(t *testing.T) {
	a := sentiment.NewAnalyzer(gateway(primaryWith(5, 15)), nil, 10, logger.Nop())

	r := a.Read(context.Background(), day)
	assert.Equal(t, 25.0, r.Score)
	assert.False(t, r.Degraded)
}

func TestAnalyzer_MissingInputsAreNeutral(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Errs["LimitUps"] = errors.New("tushare down")
	a := sentiment.NewAnalyzer(gateway(p), stubHeadlines{err: errors.New("scrape failed")}, 10, logger.Nop())

	r := a.Read(context.Background(), day)
	assert.Equal(t, sentiment.Neutral, r.Score)
	assert.True(t, r.Degraded)
	assert.Len(t, r.Notes, 2)
}

func TestAnalyzer_QuietDay(t *testing.T) {
	// 상한가/하한가 모두 없는 날은 중립
	a := sentiment.NewAnalyzer(gateway(mdtest.NewPrimary()), stubHeadlines{}, 10, logger.Nop())

	r := a.Read(context.Background(), day)
	assert.Equal(t, sentiment.Neutral, r.Score)
	assert.False(t, r.Degraded)
}
