// Package input normalizes raw spatial input from every connected source
// (tracked hands, controllers, ray pointers) into one uniform event stream.
package input

import (
	"sync"
	"time"

	"github.com/StardustXR/protostar/types"
	"github.com/StardustXR/protostar/utils"
)

// RawEvent is what the compositor delivers for one source update.
type RawEvent struct {
	Source     string
	Capability types.Capability
	Pose       types.Pose
	Activation float64
	Timestamp  time.Time
}

// Event is the normalized form consumed by the engine. Lost marks the
// synthetic event emitted when a source disconnects.
type Event struct {
	Source     string
	Capability types.Capability
	Pose       types.Pose
	Activation float64
	Timestamp  time.Time
	Lost       bool
}

// Aggregator tags events with source identity and guarantees monotonic
// per-source timestamps. Sources deliver concurrently, so the table is
// guarded; the normalized stream itself is serialized by the engine inbox.
type Aggregator struct {
	mu   sync.Mutex
	last map[string]time.Time
	caps map[string]types.Capability
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		last: make(map[string]time.Time),
		caps: make(map[string]types.Capability),
	}
}

// Ingest normalizes one raw event. Events older than the last accepted event
// for their source are dropped with a warning; that is reordering, not an
// error. The activation scalar is clamped to [0,1].
func (a *Aggregator) Ingest(raw RawEvent) (Event, bool) {
	if raw.Source == "" {
		utils.Warn("Dropping input event with empty source id")
		return Event{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if last, seen := a.last[raw.Source]; seen && raw.Timestamp.Before(last) {
		utils.Warn("Dropping stale event from %s: %v is older than %v",
			raw.Source, raw.Timestamp, last)
		return Event{}, false
	}
	a.last[raw.Source] = raw.Timestamp
	a.caps[raw.Source] = raw.Capability

	activation := raw.Activation
	if activation < 0 {
		activation = 0
	} else if activation > 1 {
		activation = 1
	}

	return Event{
		Source:     raw.Source,
		Capability: raw.Capability,
		Pose:       raw.Pose,
		Activation: activation,
		Timestamp:  raw.Timestamp,
	}, true
}

// SourceGone removes a source and returns the synthetic loss event that lets
// downstream state clean up deterministically.
func (a *Aggregator) SourceGone(source string) Event {
	a.mu.Lock()
	capability := a.caps[source]
	delete(a.last, source)
	delete(a.caps, source)
	a.mu.Unlock()

	utils.Verbose("Input source lost: %s", source)
	return Event{
		Source:     source,
		Capability: capability,
		Timestamp:  time.Now(),
		Lost:       true,
	}
}

// Sources lists the currently live source ids.
func (a *Aggregator) Sources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.last))
	for id := range a.last {
		out = append(out, id)
	}
	return out
}
