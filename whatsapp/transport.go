package whatsapp

import (
	"context"

	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

// Event is a lifecycle notification pushed by the transport while the
// connection progresses through pairing and handshake.
type Event interface {
	event()
}

// PairingEvent carries a fresh one-time pairing payload that the user must
// scan on their phone to authorize this session.
type PairingEvent struct {
	Code string
}

// AuthenticatedEvent fires once the pairing payload has been accepted.
type AuthenticatedEvent struct{}

// ReadyEvent fires once the handshake completed and sends are possible.
type ReadyEvent struct{}

// DisconnectedEvent fires on any transport drop, expected or not.
type DisconnectedEvent struct {
	Reason string
}

func (PairingEvent) event()       {}
func (AuthenticatedEvent) event() {}
func (ReadyEvent) event()         {}
func (DisconnectedEvent) event()  {}

// EventSink receives transport lifecycle events. The session implements it.
type EventSink interface {
	Publish(evt Event)
}

// Transport is the opaque provider protocol client. It is not safe for
// concurrent use; only the queue worker may call the send methods.
type Transport interface {
	// Connect starts the pairing/handshake flow. Progress is reported
	// asynchronously through the EventSink given at construction.
	Connect(ctx context.Context) error
	SendText(ctx context.Context, chatID, text string) error
	SendMedia(ctx context.Context, chatID, caption string, media model.Media) error
	IsLoggedIn() bool
	// Logout invalidates and removes the stored credentials.
	Logout() error
	Close()
}

// TransportFactory creates a fresh transport for each connection attempt.
type TransportFactory interface {
	NewTransport(sink EventSink) (Transport, error)
}
