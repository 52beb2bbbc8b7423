// Package notify delivers operator-facing status messages. Delivery is
// fire-and-forget with respect to the trading loop: a sink that cannot
// keep up drops messages and counts them, it never blocks a trade.
package notify

import "github.com/pasiyamd/forexbot/internal/observ"

// Sink accepts outbound status text.
type Sink interface {
	Send(text string)
}

// LogSink writes notifications to the structured log. Used in paper
// mode and in tests.
type LogSink struct{}

func (LogSink) Send(text string) {
	observ.Log("notify", map[string]any{"text": text})
}
