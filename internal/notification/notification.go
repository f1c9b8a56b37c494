package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindRedeemSettled is sent to the vendor when a chain is paid out.
	KindRedeemSettled = "redeem_settled"
	// KindFraudDetected is raised when a peer reveals a link that breaks its chain.
	KindFraudDetected = "fraud_detected"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
	Attrs       map[string]any
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if message.Kind == KindFraudDetected {
		level = slog.LevelWarn
	}
	args := []any{"kind", message.Kind, "destination", message.Destination, "body", message.Body}
	for k, v := range message.Attrs {
		args = append(args, k, v)
	}
	n.logger.Log(ctx, level, "notification", args...)
	return nil
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of the recorded messages, optionally filtered by kind.
func (r *Recorder) Messages(kind string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
