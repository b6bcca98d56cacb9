package risk

import (
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
)

// Trend compares the last close with its maDays moving average.
// Too few bars gives a degraded snapshot that does not block trading.
func Trend(code string, bars []marketdata.DailyBar, maDays int, tolerance float64) contracts.TrendSnapshot {
	t := contracts.TrendSnapshot{IndexCode: code, Ratio: 1.0, IsAbove: true}
	if maDays <= 0 || len(bars) < maDays {
		t.Degraded = true
		return t
	}

	tail := bars[len(bars)-maDays:]
	sum := 0.0
	for _, b := range tail {
		sum += b.Close
	}
	ma := sum / float64(maDays)
	last := tail[len(tail)-1].Close
	if ma <= 0 || last <= 0 {
		t.Degraded = true
		return t
	}

	t.Close = last
	t.MA = ma
	t.Ratio = last / ma
	t.IsAbove = t.Ratio >= tolerance
	return t
}
