package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/pkg/logger"
)

// Message kinds
const (
	KindRecommendation = "recommendation"
	KindTDay           = "t_day"
	KindBlocked        = "blocked"
	KindPerformance    = "performance"
	KindFeedback       = "feedback"
)

// Message is one push notification
type Message struct {
	Destination string      `json:"destination"`
	Kind        string      `json:"kind"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Payload     interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Notifier delivers messages. Delivery is best effort: callers log errors and move on.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier
type Multi []Notifier

// Notify delivers to all notifiers and joins their errors
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the log
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{logger: log.WithComponent("notify")}
}

// Notify logs the message
func (l *LogNotifier) Notify(ctx context.Context, msg Message) error {
	l.logger.WithFields(map[string]interface{}{
		"destination": msg.Destination,
		"kind":        msg.Kind,
		"title":       msg.Title,
	}).Info(msg.Body)
	return nil
}

// Send delivers msg and logs a failure instead of returning it
func Send(ctx context.Context, n Notifier, msg Message, log *logger.Logger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil && log != nil {
		log.WithError(err).WithField("kind", msg.Kind).Warn("Notification failed")
	}
}

// Stamp fills destination and time when missing
func Stamp(msg Message, destination string, now time.Time) Message {
	if msg.Destination == "" {
		msg.Destination = destination
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	return msg
}

func (m Message) String() string {
	return fmt.Sprintf("%s\n%s", m.Title, m.Body)
}
