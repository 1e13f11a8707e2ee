package conversation

import (
	"sync"
	"time"
)

// State is the intake phase of a single call.
type State string

const (
	StateCollecting State = "collecting"
	StateConfirming State = "confirming"
	StateBooked     State = "booked"
	StateCancelled  State = "cancelled"
	StateEnded      State = "ended"
)

// terminalCallStatuses are the provider call statuses that end a session.
var terminalCallStatuses = map[string]struct{}{
	"completed": {},
	"failed":    {},
	"busy":      {},
	"no-answer": {},
	"canceled":  {},
}

// IsTerminalCallStatus reports whether a provider status ends the call.
func IsTerminalCallStatus(status string) bool {
	_, ok := terminalCallStatuses[status]
	return ok
}

// Session holds the per-call dialogue state. All reads and writes happen
// under mu; handlers for the same call may overlap when the provider
// retries a webhook.
type Session struct {
	mu sync.Mutex

	CallID    string
	Phone     string
	History   []ChatMessage
	Draft     Draft
	State     State
	StartedAt time.Time
	UpdatedAt time.Time
}

// Lock acquires the session for a single webhook turn.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records activity on the session. Callers must hold the lock.
func (s *Session) Touch() { s.UpdatedAt = time.Now().UTC() }

// AppendTurn adds a dialogue turn to the rolling history. Callers must hold
// the lock.
func (s *Session) AppendTurn(role, content string) {
	s.History = append(s.History, ChatMessage{Role: role, Content: content})
	s.Touch()
}

// backfillPhone records the recipient number once a webhook supplies it, so a
// session restarted without one still reaches the SMS confirmation. Callers
// must hold the lock.
func (s *Session) backfillPhone(phone string) {
	if phone == "" || s.Phone != "" {
		return
	}
	s.Phone = phone
	s.Draft.Phone = phone
}

// Registry keeps every in-flight session keyed by provider call id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Start registers a fresh session for the call. Starting an already-known
// call returns the existing session unchanged.
func (r *Registry) Start(callID, phone string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[callID]; ok {
		return existing
	}
	now := time.Now().UTC()
	sess := &Session{
		CallID:    callID,
		Phone:     phone,
		Draft:     Draft{Phone: phone},
		State:     StateCollecting,
		StartedAt: now,
		UpdatedAt: now,
	}
	r.sessions[callID] = sess
	return sess
}

// Get returns the session for a call id, or nil when the call is unknown
// (never started, or already ended).
func (r *Registry) Get(callID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[callID]
}

// End removes the session for a call. Ending an unknown call is a no-op, so
// duplicate status callbacks are harmless.
func (r *Registry) End(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Len reports the number of in-flight sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
