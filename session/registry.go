package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyberinferno/state-relay/cacher"
)

// ErrDuplicateReconnection is returned when a socket tries to reconnect as
// an identity whose session is still actively connected.
var ErrDuplicateReconnection = errors.New("session: identity already has a live connection")

// Retained is the slice of session state that survives disconnection for
// the duration of the reconnect window.
type Retained struct {
	Name    string `json:"name"`
	Costume []byte `json:"costume,omitempty"`
}

// Registry owns the set of all sessions, keyed by identity. All binding,
// eviction, and removal runs under the registry's exclusion; handlers never
// mutate the session map directly. Reads (lookups, broadcast snapshots)
// run concurrently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	retained     cacher.Cacher[Retained]
	window       time.Duration
	writeTimeout time.Duration
}

// NewRegistry creates a session registry.
//
// Parameters:
//   - retained: Cache holding disconnected-session state for the reconnect
//     window; may be nil to disable retention
//   - window: How long disconnected state stays reclaimable
//   - writeTimeout: Per-send socket write deadline applied to all sessions;
//     0 disables deadlines
//
// Returns:
//   - A new Registry ready for concurrent use
func NewRegistry(retained cacher.Cacher[Retained], window, writeTimeout time.Duration) *Registry {
	return &Registry{
		sessions:     make(map[uuid.UUID]*Session),
		retained:     retained,
		window:       window,
		writeTimeout: writeTimeout,
	}
}

// BindFirst registers a brand-new session for the given identity. Any
// existing session with the same identity is evicted first and returned so
// the caller can forcibly close its stale socket; this guards against a
// reused or guessed identity leaving two live sockets broadcasting as the
// same player.
//
// Parameters:
//   - id: The identity proposed by the connect frame's header
//   - name: Display name from the connect packet
//   - conn: The live socket
//   - serial: Connection serial for log correlation
//
// Returns:
//   - The freshly registered session
//   - Evicted stale sessions, already unregistered and marked disconnected
func (r *Registry) BindFirst(id uuid.UUID, name string, conn net.Conn, serial uint64) (*Session, []*Session) {
	return r.bindFresh(id, name, conn, serial, nil)
}

// BindReconnect re-associates a new socket with an existing identity.
// A session that is present and still connected refuses the reconnection.
// A present but disconnected session is rebound in place, preserving its
// cached costume and taking the name from the new connect frame. An absent
// identity falls back to a fresh registration, restoring name and costume
// from the retention cache when the reconnect window still holds them. The
// lock is not held across the retention lookup (a network round trip on the
// Redis backend), so the map is resolved again afterwards; a session bound
// during the lookup is refused or rebound like any other, never replaced.
//
// Parameters:
//   - ctx: Context for the retention-cache lookup
//   - id: The identity from the connect frame's header
//   - name: Display name from the connect packet
//   - conn: The live socket
//   - serial: Connection serial for log correlation
//
// Returns:
//   - The bound session
//   - true if this was a fresh registration rather than a rebind
//   - ErrDuplicateReconnection if the identity is still actively connected
func (r *Registry) BindReconnect(ctx context.Context, id uuid.UUID, name string, conn net.Conn, serial uint64) (*Session, bool, error) {
	if sess, resolved, err := r.rebindPresent(id, name, conn, serial); resolved {
		return sess, false, err
	}

	var costume []byte
	if r.retained != nil {
		if ret, ok, err := r.retained.Get(ctx, id.String()); err == nil && ok {
			costume = ret.Costume
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: the identity may have been bound while the lock was down
	// for the lookup. Registration only proceeds against an absent entry,
	// under the same critical section as the check.
	if existing, ok := r.sessions[id]; ok {
		if existing.Connected() {
			return nil, false, ErrDuplicateReconnection
		}

		existing.rebind(conn, name, serial)
		return existing, false, nil
	}

	sess := r.newSession(id, name, conn, serial, costume)
	r.sessions[id] = sess

	return sess, true, nil
}

// rebindPresent resolves a reconnect against a session already in the map:
// a connected holder refuses it, a disconnected one is rebound in place.
// resolved reports whether the identity was present at all.
func (r *Registry) rebindPresent(id uuid.UUID, name string, conn net.Conn, serial uint64) (sess *Session, resolved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[id]
	if !ok {
		return nil, false, nil
	}

	if existing.Connected() {
		return nil, true, ErrDuplicateReconnection
	}

	existing.rebind(conn, name, serial)
	return existing, true, nil
}

// newSession builds a connected session; the caller registers it under the
// registry lock.
func (r *Registry) newSession(id uuid.UUID, name string, conn net.Conn, serial uint64, costume []byte) *Session {
	return &Session{
		id:           id,
		name:         name,
		conn:         conn,
		connected:    true,
		costume:      costume,
		serial:       serial,
		writeTimeout: r.writeTimeout,
	}
}

// bindFresh registers a new connected session, evicting any session that
// already holds the identity.
func (r *Registry) bindFresh(id uuid.UUID, name string, conn net.Conn, serial uint64, costume []byte) (*Session, []*Session) {
	sess := r.newSession(id, name, conn, serial, costume)

	r.mu.Lock()
	var evicted []*Session
	if old, ok := r.sessions[id]; ok && old != sess {
		delete(r.sessions, id)
		evicted = append(evicted, old)
	}
	r.sessions[id] = sess
	r.mu.Unlock()

	for _, old := range evicted {
		old.mu.Lock()
		old.connected = false
		old.mu.Unlock()
	}

	return sess, evicted
}

// Remove unregisters a session and retains its reclaimable state for the
// reconnect window. A session that was already evicted and replaced by a
// newer one with the same identity leaves the newer session untouched; in
// that case Remove reports false and retains nothing.
//
// Parameters:
//   - ctx: Context for the retention-cache write
//   - sess: The session to remove
//
// Returns:
//   - true if sess was still the registered session for its identity
func (r *Registry) Remove(ctx context.Context, sess *Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[sess.id]
	removed := ok && current == sess
	if removed {
		delete(r.sessions, sess.id)
	}
	r.mu.Unlock()

	sess.mu.Lock()
	sess.connected = false
	name := sess.name
	costume := sess.costume
	sess.mu.Unlock()

	if removed && r.retained != nil && r.window > 0 {
		_ = r.retained.Set(ctx, sess.id.String(), r.window, Retained{Name: name, Costume: costume})
	}

	return removed
}

// Get returns the session for the given identity, if registered.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Connected returns a snapshot of all connected sessions, skipping the
// excluded identity. Pass uuid.Nil to exclude nobody.
//
// Parameters:
//   - exclude: Identity to leave out of the snapshot
//
// Returns:
//   - Connected sessions in no particular order
func (r *Registry) Connected(exclude uuid.UUID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if id == exclude || !sess.Connected() {
			continue
		}

		out = append(out, sess)
	}

	return out
}
