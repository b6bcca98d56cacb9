package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/strategyconfig"
)

// State is where an auction run stands relative to its window
type State string

const (
	StateAwaitingWindow State = "awaiting_window"
	StateInWindow       State = "in_window"
	StateEvaluated      State = "evaluated"
	StateBlocked        State = "blocked"
	StateHistorical     State = "historical"
)

// Window is the auction window of one trading day, half-open [Start, End).
// 09:25-09:29 spans four minutes and closes at 09:29:00.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow places the configured HH:MM window on day in loc
func NewWindow(cfg strategyconfig.TimeWindow, day time.Time, loc *time.Location) (Window, error) {
	start, err := strategyconfig.ClockOn(day, cfg.Start, loc)
	if err != nil {
		return Window{}, fmt.Errorf("auction window start %q: %w", cfg.Start, err)
	}
	end, err := strategyconfig.ClockOn(day, cfg.End, loc)
	if err != nil {
		return Window{}, fmt.Errorf("auction window end %q: %w", cfg.End, err)
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("auction window %s-%s: end must be after start", cfg.Start, cfg.End)
	}
	return Window{Start: start, End: end}, nil
}

// Deadline is the first instant after the window
func (w Window) Deadline() time.Time {
	return w.End
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.Deadline())
}

// StateAt classifies t against the window
func (w Window) StateAt(t time.Time) State {
	switch {
	case t.Before(w.Start):
		return StateAwaitingWindow
	case w.Contains(t):
		return StateInWindow
	default:
		return StateHistorical
	}
}

// WaitUntil blocks until the window opens or ctx is done.
// It returns immediately once the window has started.
func (w Window) WaitUntil(ctx context.Context, now func() time.Time) error {
	wait := w.Start.Sub(now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start.Format("15:04"), w.End.Format("15:04"))
}
