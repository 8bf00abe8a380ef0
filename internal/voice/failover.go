package voice

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ent0n29/callbridge/internal/bridge"
)

// NewFailoverDialer prefers primary and switches to fallback when a primary
// dial fails. Once fallback succeeds it stays active until it fails; then
// primary is retried.
func NewFailoverDialer(primary, fallback bridge.Dialer) bridge.Dialer {
	if fallback == nil {
		return primary
	}
	return &failoverDialer{primary: primary, fallback: fallback}
}

type failoverDialer struct {
	primary        bridge.Dialer
	fallback       bridge.Dialer
	fallbackActive atomic.Bool
}

func (d *failoverDialer) Dial(ctx context.Context, agentID string) (bridge.Conn, error) {
	if d.fallbackActive.Load() {
		conn, fbErr := d.fallback.Dial(ctx, agentID)
		if fbErr == nil {
			return conn, nil
		}
		// Fallback failed after being active; try primary again.
		conn, prErr := d.primary.Dial(ctx, agentID)
		if prErr == nil {
			d.fallbackActive.Store(false)
			return conn, nil
		}
		return nil, fmt.Errorf("agent fallback failed: %v; agent primary failed: %w", fbErr, prErr)
	}

	conn, prErr := d.primary.Dial(ctx, agentID)
	if prErr == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, prErr
	}
	conn, fbErr := d.fallback.Dial(ctx, agentID)
	if fbErr != nil {
		return nil, fmt.Errorf("agent primary failed: %v; agent fallback failed: %w", prErr, fbErr)
	}
	d.fallbackActive.Store(true)
	return conn, nil
}
