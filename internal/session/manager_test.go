package session

import (
	"context"
	"testing"
	"time"

	"github.com/ent0n29/callbridge/internal/bridge"
)

func TestManagerObserveLifecycle(t *testing.T) {
	m := NewManager(time.Minute)
	var active []int
	m.SetActiveHook(func(n int) { active = append(active, n) })

	m.Observe(bridge.Info{ID: "s1", State: bridge.StateAuthenticating, StreamSID: "MZ1"})
	m.Observe(bridge.Info{ID: "s1", State: bridge.StateActive, StreamSID: "MZ1", AgentID: "agentX"})

	got, err := m.Get("s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusActive || got.State != "active" || got.AgentID != "agentX" {
		t.Fatalf("unexpected call state: %+v", got)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	m.Observe(bridge.Info{ID: "s1", State: bridge.StateClosed, StreamSID: "MZ1", CloseReason: "stop"})
	got, err = m.Get("s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded || got.EndedAt == nil || got.CloseReason != "stop" {
		t.Fatalf("ended call = %+v", got)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}

	want := []int{1, 1, 0}
	if len(active) != len(want) {
		t.Fatalf("active hook calls = %v, want %v", active, want)
	}
	for i := range want {
		if active[i] != want[i] {
			t.Fatalf("active hook calls = %v, want %v", active, want)
		}
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Get("missing"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	m := NewManager(time.Minute)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Observe(bridge.Info{ID: "old", State: bridge.StatePending, CreatedAt: base})
	m.Observe(bridge.Info{ID: "new", State: bridge.StatePending, CreatedAt: base.Add(time.Second)})

	snap := m.Snapshot()
	if snap.Active != 2 || len(snap.Sessions) != 2 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap.Sessions[0].ID != "new" || snap.Sessions[1].ID != "old" {
		t.Fatalf("order = %s, %s", snap.Sessions[0].ID, snap.Sessions[1].ID)
	}
}

func TestManagerJanitorPurgesEnded(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	m.Observe(bridge.Info{ID: "s1", State: bridge.StateClosed})
	m.Observe(bridge.Info{ID: "s2", State: bridge.StateActive})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := m.Get("s1"); err != ErrNotFound {
		t.Fatalf("Get(s1) error = %v, want ErrNotFound", err)
	}
	if _, err := m.Get("s2"); err != nil {
		t.Fatalf("Get(s2) error = %v", err)
	}
}
