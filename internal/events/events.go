// Package events is the engine's append-only activity log.
//
// Events are simple, synchronous records of what the engine did: ticks,
// applied and failed fixes, budget exhaustion, lifecycle changes. The
// recorder writes JSON lines to .cde/events.jsonl and the reader scans
// them back for `cde events`. Recording is best-effort: errors are
// logged to stderr but never returned to callers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event type constants.
const (
	EngineStarted   = "engine.started"
	EngineStopped   = "engine.stopped"
	EngineReset     = "engine.reset"
	TickCompleted   = "tick.completed"
	FixApplied      = "fix.applied"
	FixFailed       = "fix.failed"
	BudgetExhausted = "budget.exhausted"
	ConfigReloaded  = "config.reloaded"
)

// Event is a single recorded occurrence.
type Event struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Ts      time.Time       `json:"ts"`
	Actor   string          `json:"actor"`
	Subject string          `json:"subject,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Recorder records events. Safe for concurrent use. Best-effort.
type Recorder interface {
	Record(e Event)
}

// Provider records events and reads them back.
type Provider interface {
	Recorder

	// List returns events matching filter, oldest first.
	List(filter Filter) ([]Event, error)

	// LatestSeq returns the highest sequence number recorded, or 0.
	LatestSeq() (uint64, error)

	// Watch streams events with Seq > afterSeq until ctx is done.
	Watch(ctx context.Context, afterSeq uint64) (Watcher, error)

	// Close releases resources held by the provider.
	Close() error
}

// Watcher yields events one at a time.
type Watcher interface {
	// Next blocks until an event is available or the watch context ends.
	Next() (Event, error)
	Close() error
}

// Discard silently drops all events.
var Discard Recorder = discardRecorder{}

type discardRecorder struct{}

func (discardRecorder) Record(Event) {}

// MarshalPayload encodes v for [Event.Payload]. It returns nil when v
// cannot be encoded, dropping the payload rather than the event.
func MarshalPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
