package mqtt

import (
	"github.com/sweeney/brew-monitor/internal/logic"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// States contains every live state that was published.
	States []logic.State

	// Events contains all shot events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads for shot events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Commands contains the paddle commands that were published.
	Commands []string

	// Modes contains the controller modes that were set.
	Modes []string

	// PublishError, if set, will be returned by Publish and PublishState.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// CommandError, if set, will be returned by PublishCommand and SetMode.
	CommandError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handlers map[string]Handler
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{handlers: make(map[string]Handler)}
}

// PublishState records the live state.
func (f *FakePublisher) PublishState(state logic.State) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.States = append(f.States, state)
	return nil
}

// Publish records the shot event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// PublishCommand records the formatted paddle command.
func (f *FakePublisher) PublishCommand(value string) error {
	if f.CommandError != nil {
		return f.CommandError
	}
	cmd, err := FormatCommand(value)
	if err != nil {
		return err
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// SetMode records the normalized mode.
func (f *FakePublisher) SetMode(mode string) error {
	if f.CommandError != nil {
		return f.CommandError
	}
	m, err := FormatMode(mode)
	if err != nil {
		return err
	}
	f.Modes = append(f.Modes, m)
	return nil
}

// Subscribe records the handler so tests can Deliver messages.
func (f *FakePublisher) Subscribe(topic string, h Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]Handler)
	}
	f.handlers[topic] = h
}

// Deliver passes payload to the handler subscribed to topic.
// Returns false if nothing is subscribed.
func (f *FakePublisher) Deliver(topic string, payload []byte) bool {
	h, ok := f.handlers[topic]
	if !ok {
		return false
	}
	h(payload)
	return true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages. Subscriptions are kept.
func (f *FakePublisher) Reset() {
	f.States = nil
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Commands = nil
	f.Modes = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.CommandError = nil
	f.Connected = false
}
