package observability

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotCounts(t *testing.T) {
	m := NewMetrics("test")
	m.InboundConnected()
	m.OutboundConnected()
	m.InboundAudio(320)
	m.InboundAudio(160)
	m.OutboundAudio()
	m.BytesToInbound(400)

	snap := m.Snapshot()
	assert.Equal(t, Snapshot{
		TwilioConnections: 1,
		ElevenConnections: 1,
		BytesFromTwilio:   480,
		BytesToTwilio:     400,
		ChunksFrom11L:     1,
		ChunksFromTwilio:  2,
	}, snap)
}

func TestMetricsSnapshotJSONFieldNames(t *testing.T) {
	m := NewMetrics("test")
	raw, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)

	var fields map[string]int64
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, name := range []string{"twilioConnections", "elevenConnections", "bytesFromTwilio", "bytesToTwilio", "chunksFrom11L", "chunksFromTwilio"} {
		_, ok := fields[name]
		assert.Truef(t, ok, "missing field %q in %s", name, raw)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics("test")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.InboundAudio(2)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(5000), snap.ChunksFromTwilio)
	assert.Equal(t, int64(10000), snap.BytesFromTwilio)
}

func TestMetricsHandlerExposesPrivateRegistry(t *testing.T) {
	m := NewMetrics("bridge_test")
	m.InboundConnected()
	m.ObserveLatency(StageDial, 120*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `bridge_test_connections_total{leg="twilio"} 1`), text)
	assert.True(t, strings.Contains(text, "bridge_test_stage_latency_ms"), text)

	lat := m.Latency()
	require.Len(t, lat.Stages, 1)
	assert.Equal(t, 120.0, lat.Stages[0].LastMS)
}
