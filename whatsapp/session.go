package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cskr/pubsub"

	"github.com/sagarregmi2056/WhatsappBulkMessage/log"
	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

// ErrNotReady is returned by Send while the session is not in StateReady.
var ErrNotReady = errors.New("session is not ready")

// TransportError wraps any failure of the underlying protocol client.
type TransportError struct {
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport error: " + e.Detail + ": " + e.Err.Error()
	}
	return "transport error: " + e.Detail
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type State int

const (
	StateUninitialized State = iota
	StateAwaitingPairing
	StateAuthenticated
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is a non-blocking snapshot of the session. PairingCode is only
// non-empty while the session awaits pairing.
type Status struct {
	Ready       bool
	State       string
	PairingCode string
	LastError   string
}

type Config struct {
	// MaxReconnect bounds automatic reconnection attempts; once exhausted
	// the session stays disconnected until an explicit Reset.
	MaxReconnect int
	// ReconnectBase is doubled on every attempt.
	ReconnectBase time.Duration
	// PairingTimeout bounds one pairing/handshake cycle.
	PairingTimeout time.Duration
}

const eventsTopic = "session_events"

// internal events driving the state machine alongside transport events
type retryDue struct{}
type pairingTimedOut struct{ generation int }

func (retryDue) event()        {}
func (pairingTimedOut) event() {}

// Session owns the state machine of one outbound messaging connection:
// uninitialized -> awaiting pairing -> authenticated -> ready ->
// disconnected, with bounded backoff reconnection. All transitions happen
// on a single goroutine fed by the event subscription.
type Session struct {
	cfg     Config
	factory TransportFactory

	ps      *pubsub.PubSub
	events  chan interface{}
	stopped atomic.Bool

	mu          sync.Mutex
	state       State
	pairingCode string
	lastError   string
	transport   Transport
	attempts    int
	fatal       bool
	generation  int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(factory TransportFactory, cfg Config) *Session {
	ps := pubsub.New(64)
	return &Session{
		cfg:     cfg,
		factory: factory,
		ps:      ps,
		events:  ps.Sub(eventsTopic),
		done:    make(chan struct{}),
	}
}

// Publish feeds a transport event into the state machine. Implements
// EventSink; safe to call from any transport goroutine.
func (s *Session) Publish(evt Event) {
	if s.stopped.Load() {
		log.Trace.Println("event dropped after shutdown")
		return
	}
	s.ps.Pub(evt, eventsTopic)
}

// Start connects the transport and launches the state loop.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	go s.run()

	return s.connect()
}

// Stop tears the session down without touching stored credentials.
func (s *Session) Stop() {
	s.stopped.Store(true)

	s.mu.Lock()
	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	if transport != nil {
		transport.Close()
	}

	s.ps.Shutdown()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case v, ok := <-s.events:
			if !ok {
				return
			}
			s.transition(v.(Event))
		}
	}
}

// transition is the single state-transition function of the session.
func (s *Session) transition(evt Event) {
	s.mu.Lock()

	switch e := evt.(type) {
	case PairingEvent:
		s.state = StateAwaitingPairing
		s.pairingCode = e.Code
		s.mu.Unlock()
		log.Info.Println("new pairing payload issued")

	case AuthenticatedEvent:
		s.state = StateAuthenticated
		s.pairingCode = ""
		s.mu.Unlock()
		log.Info.Println("session authenticated")

	case ReadyEvent:
		s.state = StateReady
		s.pairingCode = ""
		s.lastError = ""
		s.attempts = 0
		s.generation++ // invalidate the pending pairing timeout
		s.mu.Unlock()
		log.Info.Println("session ready")

	case DisconnectedEvent:
		s.state = StateDisconnected
		s.pairingCode = ""
		s.lastError = e.Reason
		s.generation++
		s.mu.Unlock()
		log.Warn.Println("session disconnected:", e.Reason)
		s.scheduleRetry()

	case pairingTimedOut:
		if e.generation != s.generation || s.state == StateReady || s.state == StateDisconnected {
			s.mu.Unlock()
			return
		}
		s.state = StateDisconnected
		s.pairingCode = ""
		s.lastError = "pairing timed out"
		s.generation++
		transport := s.transport
		s.transport = nil
		s.mu.Unlock()
		log.Warn.Println("pairing timed out")
		if transport != nil {
			transport.Close()
		}
		s.scheduleRetry()

	case retryDue:
		fatal := s.fatal
		state := s.state
		s.mu.Unlock()
		if state == StateDisconnected && !fatal {
			if err := s.connect(); err != nil {
				log.ErrIfErr("reconnect failed", err)
			}
		}

	default:
		s.mu.Unlock()
	}
}

// connect tears down any previous transport, builds a fresh one and starts
// a pairing cycle guarded by the configured timeout.
func (s *Session) connect() error {
	s.mu.Lock()
	old := s.transport
	s.transport = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	transport, err := s.factory.NewTransport(s)
	if err != nil {
		s.Publish(DisconnectedEvent{Reason: "transport setup failed: " + err.Error()})
		return err
	}

	s.mu.Lock()
	s.transport = transport
	s.state = StateAwaitingPairing
	s.pairingCode = ""
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	if err := transport.Connect(s.ctx); err != nil {
		s.Publish(DisconnectedEvent{Reason: "connect failed: " + err.Error()})
		return err
	}

	if s.cfg.PairingTimeout > 0 {
		time.AfterFunc(s.cfg.PairingTimeout, func() {
			s.Publish(pairingTimedOut{generation: generation})
		})
	}

	return nil
}

// scheduleRetry arms the backoff timer for the next reconnection attempt or
// marks the session fatally disconnected once the attempt budget is spent.
func (s *Session) scheduleRetry() {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	if attempt > s.cfg.MaxReconnect {
		s.fatal = true
		s.lastError = fmt.Sprintf("gave up after %d reconnect attempts: %s", s.cfg.MaxReconnect, s.lastError)
		s.mu.Unlock()
		log.Error.Println("reconnect attempts exhausted")
		return
	}
	s.mu.Unlock()

	delay := s.cfg.ReconnectBase * (1 << (attempt - 1))
	log.Info.Println("scheduling reconnect attempt", attempt, "in", delay)

	time.AfterFunc(delay, func() {
		s.Publish(retryDue{})
	})
}

// Status returns a non-blocking snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Ready:     s.state == StateReady,
		State:     s.state.String(),
		LastError: s.lastError,
	}
	if s.state == StateAwaitingPairing {
		status.PairingCode = s.pairingCode
	}
	return status
}

// Send delivers one message through the transport. Only the queue worker
// calls this; the transport is not safe for concurrent use.
func (s *Session) Send(ctx context.Context, chatID, message string, media *model.Media) error {
	s.mu.Lock()
	ready := s.state == StateReady
	transport := s.transport
	s.mu.Unlock()

	if !ready || transport == nil {
		return ErrNotReady
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &TransportError{Detail: fmt.Sprintf("panic in transport: %v", r)}
			}
		}()
		if media != nil {
			err = transport.SendMedia(ctx, chatID, message, *media)
		} else {
			err = transport.SendText(ctx, chatID, message)
		}
	}()

	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Detail: "send failed", Err: err}
		}
	}
	return err
}

// Reset logs out, purges stored credentials and starts a fresh pairing
// cycle from scratch.
func (s *Session) Reset() error {
	s.mu.Lock()
	transport := s.transport
	s.transport = nil
	s.state = StateUninitialized
	s.pairingCode = ""
	s.lastError = ""
	s.attempts = 0
	s.fatal = false
	s.generation++
	s.mu.Unlock()

	if transport != nil {
		log.WarnIfErr("logout failed", transport.Logout())
		transport.Close()
	}

	return s.connect()
}
