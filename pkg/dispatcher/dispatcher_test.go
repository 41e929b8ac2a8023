package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/agent"
)

func TestNormalizeEventDefaultsAndEntities(t *testing.T) {
	raw := map[string]any{
		"tenant_id":  "t1",
		"event_type": "port_scan",
		"severity":   "high",
		"entities": []any{
			map[string]any{"type": "ip", "value": "10.0.0.1"},
			map[string]any{"type": "ip"}, // missing value, dropped
		},
	}
	ev, err := normalizeEvent(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "t1", ev.TenantID)
	assert.Equal(t, "HIGH", string(ev.Severity))
	require.Len(t, ev.Entities, 1)
	assert.Equal(t, "10.0.0.1", ev.Entities[0].Value)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNormalizeEventRequiresTenant(t *testing.T) {
	_, err := normalizeEvent(map[string]any{"event_type": "x"})
	assert.ErrorIs(t, err, errMissingTenant)
}

func TestRunDetectionSquadAggregatesMaxConfidence(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewHunterAgent())
	reg.Register(agent.NewSentinelAgent())

	d := &Dispatcher{registry: reg, squad: []string{"hunter", "sentinel"}}

	ac := agent.Context{RawPayload: map[string]any{"event_type": "sql_injection", "severity": "LOW"}}
	findings, maxConf, triggering := d.runDetectionSquad(context.Background(), ac)

	require.Len(t, findings, 2)
	assert.Equal(t, "hunter", triggering)
	assert.Greater(t, maxConf, 0.3)
}

func TestRunDetectionSquadSkipsUnregisteredAgents(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewHunterAgent())

	d := &Dispatcher{registry: reg, squad: []string{"hunter", "ghost"}}

	findings, _, _ := d.runDetectionSquad(context.Background(), agent.Context{RawPayload: map[string]any{}})
	assert.Len(t, findings, 1)
}

func TestDispatcherStatsSnapshot(t *testing.T) {
	d := &Dispatcher{}
	d.processed, d.promoted, d.dismissed = 3, 1, 2
	s := d.Stats()
	assert.Equal(t, Stats{Processed: 3, Promoted: 1, Dismissed: 2}, s)
}
