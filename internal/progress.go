package internal

import (
	"time"

	"lumen/internal/model"
)

// EventType identifies a progress-stream event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventRejected EventType = "rejected"
	EventComplete EventType = "complete"
)

// Event is the single outward-facing message type of every operation.
// The worker is the producer; any UI layer consumes the channel.
type Event struct {
	Type EventType `json:"type"`

	Total   int `json:"total,omitempty"`
	Current int `json:"current,omitempty"`

	// Rejection details
	File     string         `json:"file,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Category model.Category `json:"category,omitempty"`

	// Summary counters
	Stats OpStats `json:"stats"`

	Phase string `json:"phase,omitempty"`
}

// OpStats aggregates per-operation counters.
type OpStats struct {
	Imported   int `json:"imported"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// emitter sends events to a channel, throttling progress updates by file
// count and elapsed time so a slow consumer is never flooded.
type emitter struct {
	ch         chan<- Event
	everyFiles int
	every      time.Duration
	lastCount  int
	lastEmit   time.Time
}

func newEmitter(ch chan<- Event, cfg *Config) *emitter {
	return &emitter{
		ch:         ch,
		everyFiles: max(cfg.ProgressEveryFiles, 1),
		every:      cfg.ProgressInterval(),
	}
}

func (e *emitter) Start(total int) {
	e.ch <- Event{Type: EventStart, Total: total}
	e.lastEmit = time.Now()
}

// Progress emits a throttled progress event; the final file always emits.
func (e *emitter) Progress(current, total int, stats OpStats, phase string) {
	if current != total &&
		current-e.lastCount < e.everyFiles &&
		time.Since(e.lastEmit) < e.every {
		return
	}
	e.lastCount = current
	e.lastEmit = time.Now()
	e.ch <- Event{Type: EventProgress, Current: current, Total: total, Stats: stats, Phase: phase}
}

func (e *emitter) Rejected(file string, procErr *ProcessError, stats OpStats) {
	e.ch <- Event{
		Type:     EventRejected,
		File:     file,
		Reason:   procErr.Message,
		Category: procErr.Category,
		Stats:    stats,
	}
}

func (e *emitter) Complete(stats OpStats) {
	e.ch <- Event{Type: EventComplete, Stats: stats}
}
