package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sagarregmi2056/WhatsappBulkMessage/whatsapp"
)

// DefaultUser is the single logical tenant of this deployment.
const DefaultUser = "default"

type sessionEntry struct {
	session *whatsapp.Session
	queue   *whatsapp.Queue
}

// Registry owns the per-user session and delivery queue pair. Entries are
// created on first use and torn down explicitly; the queue is shared by
// every campaign of the same user so concurrent campaigns interleave
// through one worker.
type Registry struct {
	ctx        context.Context
	factory    whatsapp.TransportFactory
	sessionCfg whatsapp.Config
	queueCfg   whatsapp.QueueConfig

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func NewRegistry(ctx context.Context, factory whatsapp.TransportFactory, sessionCfg whatsapp.Config, queueCfg whatsapp.QueueConfig) *Registry {
	return &Registry{
		ctx:        ctx,
		factory:    factory,
		sessionCfg: sessionCfg,
		queueCfg:   queueCfg,
		entries:    map[string]*sessionEntry{},
	}
}

// Acquire returns the user's session and queue, creating and starting them
// on first use. Sessions are bound to the registry's context so they
// outlive individual requests.
func (r *Registry) Acquire(userID string) (*whatsapp.Session, *whatsapp.Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[userID]; ok {
		return entry.session, entry.queue
	}

	session := whatsapp.NewSession(r.factory, r.sessionCfg)
	if err := session.Start(r.ctx); err != nil {
		// the session keeps retrying on its own; first connect failing
		// is not fatal to the registry entry
		zap.L().Warn("initial connect failed", zap.String("user", userID), zap.Error(err))
	}

	queue := whatsapp.NewQueue(session, r.queueCfg)
	queue.Start(r.ctx)

	entry := &sessionEntry{session: session, queue: queue}
	r.entries[userID] = entry

	zap.L().Info("session created", zap.String("user", userID))
	return entry.session, entry.queue
}

// Teardown stops and removes the user's session and queue.
func (r *Registry) Teardown(userID string) {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()

	if !ok {
		return
	}

	entry.queue.Stop()
	entry.session.Stop()
	zap.L().Info("session torn down", zap.String("user", userID))
}

// Shutdown tears down every entry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	r.mu.Unlock()

	for _, userID := range users {
		r.Teardown(userID)
	}
}
