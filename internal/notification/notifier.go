// Package notification delivers trading alerts (pauses, forced exits,
// stream trouble) to external channels such as webhooks and Telegram.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (useful in paper mode
// and development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Hub fans alerts out to every configured backend from a single goroutine
// so that a slow webhook never blocks the decision loop. Publish is
// non-blocking; alerts are dropped with a log line when the queue is full.
type Hub struct {
	sinks []Notifier
	ch    chan Alert
}

// NewHub creates a hub over the given backends.
func NewHub(sinks ...Notifier) *Hub {
	return &Hub{
		sinks: sinks,
		ch:    make(chan Alert, 32),
	}
}

// Publish queues an alert for delivery without blocking the caller.
func (h *Hub) Publish(alert Alert) {
	select {
	case h.ch <- alert:
	default:
		log.Printf("[notify] queue full, dropping alert: %s", alert.Title)
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-h.ch:
			for _, s := range h.sinks {
				if err := s.Send(ctx, alert); err != nil {
					log.Printf("[notify] delivery failed: %v", err)
				}
			}
		}
	}
}

// TradingPausedAlert reports an equity floor breach.
func TradingPausedAlert(equity, floor float64) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "Trading paused",
		Message: fmt.Sprintf("account equity %.2f fell below floor %.2f, entries suspended", equity, floor),
	}
}

// TradingResumedAlert reports equity recovering above the floor.
func TradingResumedAlert(equity, floor float64) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Trading resumed",
		Message: fmt.Sprintf("account equity %.2f back above floor %.2f", equity, floor),
	}
}

// ForcedExitAlert reports a position closed by a risk threshold.
func ForcedExitAlert(reason string, pnl float64, qty int) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Forced exit",
		Message: fmt.Sprintf("closing %d contract(s), %s hit at unrealized PnL %.2f", qty, reason, pnl),
	}
}

// StreamReconnectAlert reports a market data stream rebuild.
func StreamReconnectAlert(attempt int, cause string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Stream reconnecting",
		Message: fmt.Sprintf("rebuilding market data stream (attempt %d): %s", attempt, cause),
	}
}

// SessionCutoverAlert reports the configured end-of-session halt.
func SessionCutoverAlert() Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Session cutover",
		Message: "session deadline reached, no further entries this run",
	}
}
