package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tableside/internal/metrics"
	"github.com/mesh-intelligence/tableside/pkg/types"
)

// openSession is one customer's in-progress configuration of an item.
type openSession struct {
	id       string
	item     *types.MenuItem
	session  *types.Session
	lastUsed time.Time
}

// sessionRegistry owns every open selection session. A Session is not safe
// for concurrent use, so all access goes through with, which holds the
// registry lock for the duration of the callback.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*openSession
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Collector
}

func newSessionRegistry(ttl time.Duration, m *metrics.Collector) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*openSession),
		ttl:      ttl,
		now:      time.Now,
		metrics:  m,
	}
}

// open registers a session and returns its UUID v7 handle.
func (r *sessionRegistry) open(item *types.MenuItem, s *types.Session) (*openSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}
	sess := &openSession{id: id.String(), item: item, session: s}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess.lastUsed = r.now()
	r.sessions[sess.id] = sess
	r.metrics.SessionOpened()
	return sess, nil
}

// with runs fn on the session under the registry lock. A session that fn
// confirmed is removed from the registry afterwards.
func (r *sessionRegistry) with(id string, fn func(*openSession) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	sess.lastUsed = r.now()
	err := fn(sess)
	if sess.session.Closed() {
		r.remove(id, metrics.ReasonConfirmed)
	}
	return err
}

// cancel discards a session.
func (r *sessionRegistry) cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	sess.session.Cancel()
	r.remove(id, metrics.ReasonCancelled)
	return nil
}

// sweep cancels sessions idle for longer than the TTL and returns how many
// it dropped. A zero TTL disables expiry.
func (r *sessionRegistry) sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	n := 0
	for id, sess := range r.sessions {
		if sess.lastUsed.Before(cutoff) {
			sess.session.Cancel()
			r.remove(id, metrics.ReasonExpired)
			n++
		}
	}
	return n
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// remove deletes a session. The caller holds r.mu.
func (r *sessionRegistry) remove(id, reason string) {
	delete(r.sessions, id)
	r.metrics.SessionClosed(reason)
}
