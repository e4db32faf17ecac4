// Package session implements the Session Store (spec §4.3, component C4):
// an in-memory, process-wide keyed store of CoagentSession instances with
// idle expiry and a background sweep.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a CoagentSession (spec §3).
type Status string

const (
	StatusActive     Status = "active"
	StatusIdle       Status = "idle"
	StatusTerminated Status = "terminated"
)

// Session is a CoagentSession (spec §3): the stateful conversational
// container anchored to an optional ERP document.
type Session struct {
	ID                 string
	UserID             string
	Doctype            string
	DocName            string
	EnabledIndustries  []string
	Context            map[string]any
	CreatedAt          time.Time
	LastActivity       time.Time
	Status             Status
}

// Params describes the fields a caller may set when creating a session.
type Params struct {
	UserID            string
	Doctype           string
	DocName           string
	EnabledIndustries []string
}

var (
	// ErrNotFound indicates no session exists for the given id.
	ErrNotFound = errors.New("session: not found")
	// ErrTerminated indicates the session exists but has been terminated.
	ErrTerminated = errors.New("session: terminated")
)

// Store is the exclusive owner of CoagentSession state (spec §3 ownership).
// All mutation happens on a single goroutine per session access path, so the
// internal mutex exists only to guard the map itself against the sweep
// goroutine racing with request goroutines (spec §5: "safe without locks"
// refers to logical per-session sequencing; the map needs its own guard).
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewStore constructs a Store with the given idle timeout (spec default 30
// min, configured via SESSION_IDLE_TIMEOUT_MS).
func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		stopSweep:   make(chan struct{}),
	}
}

// GetOrCreate returns the existing session for id (refreshing LastActivity),
// or creates a new one with a freshly generated id when id is empty or
// unknown. Per spec §3 invariant 1, at most one active session may exist
// for a given (user_id, doctype, doc_name) triple; when id is empty and an
// active session already matches that triple, it is returned instead of
// creating a duplicate.
func (s *Store) GetOrCreate(id string, p Params) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			if sess.Status == StatusTerminated {
				return nil, ErrTerminated
			}
			sess.LastActivity = now
			sess.Status = StatusActive
			return sess, nil
		}
	}

	if id == "" {
		for _, sess := range s.sessions {
			if sess.Status != StatusTerminated &&
				sess.UserID == p.UserID && sess.Doctype == p.Doctype && sess.DocName == p.DocName {
				sess.LastActivity = now
				return sess, nil
			}
		}
	}
	id = uuid.NewString()

	sess := &Session{
		ID:                id,
		UserID:            p.UserID,
		Doctype:           p.Doctype,
		DocName:           p.DocName,
		EnabledIndustries: append([]string(nil), p.EnabledIndustries...),
		Context:           make(map[string]any),
		CreatedAt:         now,
		LastActivity:      now,
		Status:            StatusActive,
	}
	s.sessions[id] = sess
	return sess, nil
}

// Get returns the session for id without creating one.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch refreshes LastActivity for id. No-op if the session does not exist.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivity = time.Now()
	}
}

// SetContext writes a single key into the session's context map,
// last-writer-wins (spec §3).
func (s *Store) SetContext(id, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Context[key] = value
	}
}

// Terminate deletes the session immediately (spec §3: "Terminated sessions
// are deleted immediately").
func (s *Store) Terminate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Stats summarizes store occupancy for monitoring (spec §4.3).
type Stats struct {
	Total  int
	Active int
	Idle   int
	ByUser map[string]int
}

// Statistics computes Stats over the current session set.
func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{ByUser: make(map[string]int)}
	now := time.Now()
	for _, sess := range s.sessions {
		stats.Total++
		stats.ByUser[sess.UserID]++
		if now.Sub(sess.LastActivity) > s.idleTimeout {
			stats.Idle++
		} else {
			stats.Active++
		}
	}
	return stats
}

// sweep evicts sessions idle beyond the configured timeout (spec §3, §4.3,
// and the universal invariant in §8: "after a sweep pass, s exists iff
// now - s.last_activity <= idle_timeout").
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.idleTimeout {
			delete(s.sessions, id)
		}
	}
}

// StartSweep launches the periodic sweep goroutine (spec §4.3: "every 5
// min"). Calling StartSweep more than once is a no-op; call Stop to halt it.
func (s *Store) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.sweep()
				case <-s.stopSweep:
					return
				}
			}
		}()
	})
}

// Stop halts the sweep goroutine started by StartSweep.
func (s *Store) Stop() {
	close(s.stopSweep)
}
