package pipeline

// EventType names a progress notification.
type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventFileStarted EventType = "file_started"
	EventFileWritten EventType = "file_written"
	EventFileFailed  EventType = "file_failed"
	EventRunFinished EventType = "run_finished"
)

// Event is delivered synchronously to the Observer, from the run's goroutine.
type Event struct {
	Type  EventType `json:"type"`
	Path  string    `json:"path,omitempty"`
	Index int       `json:"index"`
	Total int       `json:"total"`
	Bytes int       `json:"bytes,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Observer receives progress events. It must not block for long: the run waits.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
