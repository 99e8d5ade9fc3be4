package assistant

import (
	"context"
	"sync"
	"time"
)

// Roles recorded in a session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SessionStore keeps the recent turns of assistant conversations.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	Recent(ctx context.Context, sessionID string, n int) ([]Turn, error)
}

// MemorySessions is an in-process SessionStore. It keeps at most maxTurns per
// session and never expires anything, so it is meant for tests and single
// instance development setups.
type MemorySessions struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

func NewMemorySessions(maxTurns int) *MemorySessions {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &MemorySessions{maxTurns: maxTurns, sessions: make(map[string][]Turn)}
}

func (m *MemorySessions) Append(_ context.Context, sessionID string, turns ...Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(m.sessions[sessionID], turns...)
	if len(all) > m.maxTurns {
		all = append([]Turn(nil), all[len(all)-m.maxTurns:]...)
	}
	m.sessions[sessionID] = all
	return nil
}

func (m *MemorySessions) Recent(_ context.Context, sessionID string, n int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sessions[sessionID]
	if n <= 0 || len(all) == 0 {
		return nil, nil
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]Turn, n)
	copy(out, all[len(all)-n:])
	return out, nil
}
