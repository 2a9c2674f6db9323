package testing

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/minisc/minisc/internal/platform/ssh"
	"github.com/minisc/minisc/internal/provisioning"
)

// MockShell is a mock of a remote shell session.
type MockShell struct {
	mock.Mock
}

// Run records the command and returns the configured result.
func (m *MockShell) Run(ctx context.Context, command string) (ssh.Result, error) {
	args := m.Called(ctx, command)
	return args.Get(0).(ssh.Result), args.Error(1)
}

// Close records the call.
func (m *MockShell) Close() error {
	args := m.Called()
	return args.Error(0)
}

// RecordingObserver keeps every event and message for assertions.
// It is safe for concurrent use.
type RecordingObserver struct {
	mu       *sync.Mutex
	events   *[]provisioning.Event
	messages *[]string
	fields   map[string]string
}

var _ provisioning.Observer = (*RecordingObserver)(nil)

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:       &sync.Mutex{},
		events:   &[]provisioning.Event{},
		messages: &[]string{},
		fields:   map[string]string{},
	}
}

// Printf records the format string.
func (r *RecordingObserver) Printf(format string, _ ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.messages = append(*r.messages, format)
}

// Event records the event with context fields merged in.
func (r *RecordingObserver) Event(event provisioning.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fields) > 0 {
		merged := make(map[string]string, len(r.fields)+len(event.Fields))
		for k, v := range r.fields {
			merged[k] = v
		}
		for k, v := range event.Fields {
			merged[k] = v
		}
		event.Fields = merged
	}
	*r.events = append(*r.events, event)
}

// Progress records a progress event.
func (r *RecordingObserver) Progress(phase string, _, _ int) {
	r.Event(provisioning.Event{Type: provisioning.EventProgress, Phase: phase})
}

// WithFields returns a recorder sharing storage with r.
func (r *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(r.fields)+len(fields))
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: r.mu, events: r.events, messages: r.messages, fields: merged}
}

// Events returns a copy of the recorded events.
func (r *RecordingObserver) Events() []provisioning.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provisioning.Event(nil), *r.events...)
}

// EventsOfType returns the recorded events of type t.
func (r *RecordingObserver) EventsOfType(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns a copy of the recorded Printf format strings.
func (r *RecordingObserver) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), *r.messages...)
}
