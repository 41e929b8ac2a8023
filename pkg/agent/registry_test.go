package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetAndAll(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	a, ok := r.Get("hunter")
	require.True(t, ok)
	assert.Equal(t, "hunter", a.Name())

	_, ok = r.Get("nonexistent")
	assert.False(t, ok)

	all := r.All()
	assert.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Name(), all[i].Name())
	}
}

func TestRegistryByNamesSkipsMissing(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	got := r.ByNames([]string{"hunter", "does-not-exist", "sentinel"})
	require.Len(t, got, 2)
	assert.Equal(t, "hunter", got[0].Name())
	assert.Equal(t, "sentinel", got[1].Name())
}

func TestRegistryMustGetPanicsOnMissing(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.MustGet("missing") })
}

func TestDetectionSquadScoring(t *testing.T) {
	ctx := context.Background()

	hunter := NewHunterAgent()
	out, err := hunter.Execute(ctx, Context{RawPayload: map[string]any{"event_type": "sql_injection_attempt"}})
	require.NoError(t, err)
	assert.Greater(t, out.Confidence, 0.8)

	sentinel := NewSentinelAgent()
	out, err = sentinel.Execute(ctx, Context{RawPayload: map[string]any{"severity": "CRITICAL"}})
	require.NoError(t, err)
	assert.Greater(t, out.Confidence, 0.9)

	out, err = sentinel.Execute(ctx, Context{RawPayload: map[string]any{}})
	require.NoError(t, err)
	assert.Less(t, out.Confidence, 0.3)
}

func TestRouterAggregatesMaxConfidence(t *testing.T) {
	router := NewRouterAgent()
	out, err := router.Execute(context.Background(), Context{
		PriorFindings: []AgentOutput{
			{AgentName: "hunter", Confidence: 0.9},
			{AgentName: "sentinel", Confidence: 0.1},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, out.Confidence, 0.0001)
	activated, _ := out.Content["activated_agents"].([]string)
	assert.Equal(t, []string{"hunter"}, activated)
}

func TestAnalystVerdict(t *testing.T) {
	analyst := NewAnalystAgent()

	out, err := analyst.Execute(context.Background(), Context{
		PriorFindings: []AgentOutput{{Confidence: 0.8}},
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirmed, out.Content["verdict"])

	out, err = analyst.Execute(context.Background(), Context{
		PriorFindings: []AgentOutput{{Confidence: 0.1}},
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictDismissed, out.Content["verdict"])
}

func TestOversightEscalatesNonEmptyProposal(t *testing.T) {
	oversight := NewOversightAgent()

	out, err := oversight.Execute(context.Background(), Context{
		PriorFindings: []AgentOutput{
			{OutputType: OutputTypeProposal, Content: map[string]any{"actions": []any{"x"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OversightEscalate, out.Content["decision"])

	out, err = oversight.Execute(context.Background(), Context{
		PriorFindings: []AgentOutput{
			{OutputType: OutputTypeProposal, Content: map[string]any{"actions": []any{}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OversightApprove, out.Content["decision"])
}

func TestAgentExecuteRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHunterAgent().Execute(ctx, Context{})
	assert.ErrorIs(t, err, context.Canceled)
}
