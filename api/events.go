package api

import "time"

// EventType tags transport lifecycle and progress events.
type EventType int

const (
	// EventStarted fires once a track has been loaded and rendering begins.
	EventStarted EventType = iota + 1
	// EventPosition reports elapsed time while playing. Best effort: slow
	// consumers may miss updates, lifecycle events are never dropped.
	EventPosition
	// EventPaused and EventResumed report pause toggles.
	EventPaused
	EventResumed
	// EventSeeked reports a successful seek; Elapsed carries the actual
	// position the decoder landed on.
	EventSeeked
	// EventStopped ends a session by explicit command.
	EventStopped
	// EventFinished ends a session by natural end of stream. Exactly one
	// terminal event (Stopped, Finished or Failed) is emitted per session.
	EventFinished
	// EventFailed ends a session because the decoder or device failed.
	EventFailed
)

var eventNames = map[EventType]string{
	EventStarted:  "started",
	EventPosition: "position",
	EventPaused:   "paused",
	EventResumed:  "resumed",
	EventSeeked:   "seeked",
	EventStopped:  "stopped",
	EventFinished: "finished",
	EventFailed:   "failed",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the event ends its playback session.
func (t EventType) Terminal() bool {
	switch t {
	case EventStopped, EventFinished, EventFailed:
		return true
	}
	return false
}

// Event is emitted by the transport, in emission order, over a one-way
// channel to the coordinator.
type Event struct {
	Type     EventType
	Session  string // unique per loaded track
	Path     string
	Elapsed  time.Duration
	Duration time.Duration
	State    State // transport state after the event
	Err      error // set for EventFailed
	At       time.Time
}

// Position is a read-only snapshot of transport progress.
type Position struct {
	State    State
	Path     string
	Elapsed  time.Duration
	Duration time.Duration
}
