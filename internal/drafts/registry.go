// Package drafts keeps the open booking sessions of the gateway, one per
// draft, and expires the ones a customer walked away from.
package drafts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// DefaultTTL is how long an untouched draft stays open.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned for unknown or foreign drafts, and for closed
// drafts once their tombstone has been swept.
var ErrNotFound = errors.New("drafts: draft not found")

// Opener builds the session for a new draft.
type Opener func(id string, service booking.Service) (*booking.Session, error)

type entry struct {
	session *booking.Session
	owner   string
	// closedAt is set once the draft is closed; the entry then stays as a
	// tombstone for one TTL so its owner sees booking.ErrSessionClosed.
	closedAt time.Time
}

func (e entry) closed() bool { return !e.closedAt.IsZero() || e.session.Closed() }

// Options configure a Registry.
type Options struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger *logging.Logger
}

// Registry is an in-memory, owner-scoped session store.
type Registry struct {
	open   Opener
	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]entry
}

func NewRegistry(open Opener, opts Options) *Registry {
	if open == nil {
		panic("drafts: opener required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Registry{
		open:    open,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
		entries: make(map[string]entry),
	}
}

// Open starts a draft for service owned by owner.
func (r *Registry) Open(owner string, service booking.Service) (*booking.Session, error) {
	id := uuid.NewString()
	s, err := r.open(id, service)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries[id] = entry{session: s, owner: owner}
	r.mu.Unlock()
	r.logger.Debug("draft opened", "draft_id", id, "service_id", service.ID)
	return s, nil
}

// Get returns the owner's draft. Drafts of other owners look missing; the
// owner's own closed drafts report booking.ErrSessionClosed.
func (r *Registry) Get(owner, id string) (*booking.Session, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok || e.owner != owner {
		return nil, ErrNotFound
	}
	if e.closed() {
		return nil, booking.ErrSessionClosed
	}
	return e.session, nil
}

// Close abandons the draft and cancels its in-flight requests. Closing an
// already closed draft reports booking.ErrSessionClosed.
func (r *Registry) Close(owner, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.owner != owner {
		r.mu.Unlock()
		return ErrNotFound
	}
	if !e.closedAt.IsZero() {
		r.mu.Unlock()
		return booking.ErrSessionClosed
	}
	e.closedAt = r.now()
	r.entries[id] = e
	r.mu.Unlock()
	e.session.Close()
	return nil
}

// Len reports the number of open drafts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if !e.closed() {
			n++
		}
	}
	return n
}

// Sweep closes drafts idle for longer than the TTL and returns how many it
// expired. Tombstones older than the TTL are dropped.
func (r *Registry) Sweep() int {
	now := r.now()
	cutoff := now.Add(-r.ttl)
	var expired []entry

	r.mu.Lock()
	for id, e := range r.entries {
		switch {
		case !e.closedAt.IsZero():
			if e.closedAt.Before(cutoff) {
				delete(r.entries, id)
			}
		case e.session.Closed() || e.session.LastActive().Before(cutoff):
			e.closedAt = now
			r.entries[id] = e
			expired = append(expired, e)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.session.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle drafts", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done, then closes every draft.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.session.Close()
	}
}
