package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hornet-sec/hornet/pkg/models"
)

func TestCanTransitionLegalEdges(t *testing.T) {
	cases := []struct {
		from, to models.IncidentState
		want     bool
	}{
		{models.StateIdle, models.StateDetection, true},
		{models.StateDetection, models.StateEnrichment, true},
		{models.StateDetection, models.StateAnalysis, false},
		{models.StateOversight, models.StateExecution, true},
		{models.StateEscalated, models.StateAnalysis, true},
		{models.StateEscalated, models.StateDetection, false},
		{models.StateError, models.StateClosed, true},
		{models.StateClosed, models.StateDetection, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, canTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, terminalStates[models.StateClosed])
	assert.True(t, terminalStates[models.StateError])
	assert.True(t, terminalStates[models.StateEscalated])
	assert.False(t, terminalStates[models.StateDetection])
}

func TestTotalPhaseDeadlineIsPositiveAndLockTTLExceedsIt(t *testing.T) {
	total := totalPhaseDeadline()
	assert.Greater(t, total.Seconds(), 0.0)
	assert.Greater(t, lockTTL, total)
}

func TestActionFromMapDefaultsRiskAndOrder(t *testing.T) {
	inc := &models.Incident{ID: "i1", TenantID: "t1"}
	a := actionFromMap(inc, 2, map[string]any{
		"action_type": "block_ip",
		"target":      "10.0.0.1",
	})
	assert.Equal(t, "i1", a.IncidentID)
	assert.Equal(t, "t1", a.TenantID)
	assert.Equal(t, models.RiskMedium, a.RiskLevel)
	assert.Equal(t, 2, a.Order)
	assert.Equal(t, models.ActionProposed, a.Status)
}

func TestActionFromMapHonorsExplicitFields(t *testing.T) {
	inc := &models.Incident{ID: "i1", TenantID: "t1"}
	a := actionFromMap(inc, 0, map[string]any{
		"action_type":    "isolate_host",
		"risk_level":     "high",
		"order":          float64(5),
		"parallel_group": float64(1),
		"dependencies":   []any{"dep-1", "dep-2"},
	})
	assert.Equal(t, models.RiskHigh, a.RiskLevel)
	assert.Equal(t, 5, a.Order)
	assert.Equal(t, 1, a.ParallelGroup)
	assert.Equal(t, []string{"dep-1", "dep-2"}, a.Dependencies)
}
