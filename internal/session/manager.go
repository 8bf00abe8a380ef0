package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ent0n29/callbridge/internal/bridge"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Call is the registry view of one bridged call.
type Call struct {
	ID             string     `json:"session_id"`
	StreamSID      string     `json:"stream_sid,omitempty"`
	CallSID        string     `json:"call_sid,omitempty"`
	AccountSID     string     `json:"account_sid,omitempty"`
	AgentID        string     `json:"agent_id,omitempty"`
	State          string     `json:"state"`
	Status         Status     `json:"status"`
	CloseReason    string     `json:"close_reason,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Manager tracks live calls and keeps ended ones around for a retention
// window so operators can still inspect them.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Call
	retention time.Duration
	onActive  func(active int)
	now       func() time.Time
}

func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &Manager{
		sessions:  make(map[string]*Call),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetActiveHook registers fn to receive the active call count after every
// change.
func (m *Manager) SetActiveHook(fn func(active int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onActive = fn
}

// Observe records the latest state of a bridge session.
func (m *Manager) Observe(info bridge.Info) {
	now := m.now()

	m.mu.Lock()
	c, ok := m.sessions[info.ID]
	if !ok {
		started := info.CreatedAt.UTC()
		if info.CreatedAt.IsZero() {
			started = now
		}
		c = &Call{ID: info.ID, Status: StatusActive, StartedAt: started}
		m.sessions[info.ID] = c
	}
	c.StreamSID = info.StreamSID
	c.CallSID = info.CallSID
	c.AccountSID = info.AccountSID
	c.AgentID = info.AgentID
	c.State = string(info.State)
	c.CloseReason = info.CloseReason
	c.LastActivityAt = now
	if info.State == bridge.StateClosed && c.Status != StatusEnded {
		c.Status = StatusEnded
		ended := now
		c.EndedAt = &ended
	}
	active := m.activeLocked()
	hook := m.onActive
	m.mu.Unlock()

	if hook != nil {
		hook(active)
	}
}

func (m *Manager) Get(sessionID string) (*Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// List returns all tracked calls, newest first.
func (m *Manager) List() []*Call {
	m.mu.RLock()
	out := make([]*Call, 0, len(m.sessions))
	for _, c := range m.sessions {
		out = append(out, clone(c))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.purgeEnded()
			}
		}
	}()
}

func (m *Manager) purgeEnded() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, c := range m.sessions {
		if c.Status != StatusEnded || c.EndedAt == nil {
			continue
		}
		if now.Sub(*c.EndedAt) < m.retention {
			continue
		}
		delete(m.sessions, id)
		purged++
	}
	return purged
}

func (m *Manager) activeLocked() int {
	count := 0
	for _, c := range m.sessions {
		if c.Status == StatusActive {
			count++
		}
	}
	return count
}

func clone(c *Call) *Call {
	out := *c
	if c.EndedAt != nil {
		ended := *c.EndedAt
		out.EndedAt = &ended
	}
	return &out
}
