package device

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single send/receive observer notification. Kind is "send" or
// "receive"; HexPayload is a copy of the hex-encoded bytes — subscribers
// can never mutate the request/response through an Event.
type Event struct {
	Kind       string    `json:"kind"`
	CommandID  byte      `json:"commandId"`
	Correlate  string    `json:"correlate"`
	HexPayload string    `json:"hexPayload"`
	At         time.Time `json:"at"`
}

// Observer receives a copy of every send/receive event.
type Observer func(Event)

// observerRegistry is a small publish-subscribe registry. Delivery is
// synchronous and best-effort: a panicking observer does not take down
// the device client.
type observerRegistry struct {
	mu        sync.RWMutex
	observers []Observer
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{}
}

func (r *observerRegistry) Subscribe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

func (r *observerRegistry) publish(evt Event) {
	r.mu.RLock()
	obs := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()

	for _, o := range obs {
		func() {
			defer func() { _ = recover() }()
			o(evt)
		}()
	}
}

// newCorrelationID stamps each exchange with a uuid so a subscriber can
// pair a "send" event with its matching "receive" event.
func newCorrelationID() string {
	return uuid.NewString()
}

// NDJSONSink appends every event to an append-only NDJSON file, adapted
// from an append-only audit logger: one JSON object per line, opened in
// append mode with restrictive permissions on each write.
type NDJSONSink struct {
	path string
	mu   sync.Mutex
}

// NewNDJSONSink creates a sink writing to path. The parent directory must
// already exist; callers needing a fresh directory create it themselves.
func NewNDJSONSink(path string) *NDJSONSink {
	return &NDJSONSink{path: path}
}

// Observer returns an Observer bound to this sink's append-only file.
func (s *NDJSONSink) Observer() Observer {
	return func(evt Event) {
		s.mu.Lock()
		defer s.mu.Unlock()

		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return
		}
		defer f.Close()

		line, err := json.Marshal(evt)
		if err != nil {
			return
		}
		_, _ = f.Write(append(line, '\n'))
	}
}
