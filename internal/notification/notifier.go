// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events: executed trades, risk stops,
// and the daily report.
package notification

import (
	"context"
	"log/slog"
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

// LogNotifier writes alerts to the structured log (useful for development
// and as the always-on fallback channel).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	attrs := []any{
		slog.String("level", string(alert.Level)),
		slog.String("title", alert.Title),
		slog.String("message", alert.Message),
	}
	switch alert.Level {
	case AlertCritical:
		n.log.Error("alert", attrs...)
	case AlertWarning:
		n.log.Warn("alert", attrs...)
	default:
		n.log.Info("alert", attrs...)
	}
	return nil
}

// MultiNotifier fans an alert out to every backend. Delivery is best
// effort: one failing channel never blocks the others, and the first
// error is returned after all sends.
type MultiNotifier struct {
	backends []Notifier
	log      *slog.Logger
}

// NewMultiNotifier creates a fan-out notifier.
func NewMultiNotifier(log *slog.Logger, backends ...Notifier) *MultiNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &MultiNotifier{backends: backends, log: log}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			m.log.Warn("notification delivery failed",
				slog.String("title", alert.Title),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
