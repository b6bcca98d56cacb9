package jobs

import (
	"fmt"
	"time"
)

// Weekdays is the cron day-of-week field for exchange sessions
const Weekdays = "1-5"

// ClockSpec builds a cron spec (with seconds) firing at HH:MM minus lead on the given days.
// days is a cron day-of-week field ("*", "1-5", "6").
func ClockSpec(clock string, lead time.Duration, days string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		if t, err = time.Parse("15:04:05", clock); err != nil {
			return "", fmt.Errorf("invalid clock %q: %w", clock, err)
		}
	}
	t = t.Add(-lead)
	if t.Day() != 1 {
		// 자정 이전으로 넘어가면 요일 필드가 어긋남
		return "", fmt.Errorf("clock %q minus lead %s crosses midnight", clock, lead)
	}
	if days == "" {
		days = "*"
	}
	return fmt.Sprintf("%d %d %d * * %s", t.Second(), t.Minute(), t.Hour(), days), nil
}
