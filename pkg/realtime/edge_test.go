package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSignedActionVerifiesWithSameSecret(t *testing.T) {
	sa, err := BuildSignedAction("topsecret", "t1", "inc1", "isolate_host", "host-1", map[string]any{"duration": "1h"}, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, sa.ActionID)
	assert.NotEmpty(t, sa.Nonce)
	assert.NoError(t, sa.Verify("topsecret"))
}

func TestSignedActionVerifyRejectsWrongSecret(t *testing.T) {
	sa, err := BuildSignedAction("topsecret", "t1", "inc1", "isolate_host", "host-1", nil, time.Minute)
	require.NoError(t, err)
	assert.Error(t, sa.Verify("wrong-secret"))
}

func TestSignedActionVerifyRejectsExpired(t *testing.T) {
	sa, err := BuildSignedAction("topsecret", "t1", "inc1", "isolate_host", "host-1", nil, -time.Minute)
	require.NoError(t, err)
	err = sa.Verify("topsecret")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignedActionVerifyRejectsTamperedField(t *testing.T) {
	sa, err := BuildSignedAction("topsecret", "t1", "inc1", "isolate_host", "host-1", nil, time.Minute)
	require.NoError(t, err)
	sa.Target = "host-2"
	assert.Error(t, sa.Verify("topsecret"))
}

func TestCheckAndRecordNonceRejectsReplay(t *testing.T) {
	m := NewEdgeManager(nil, "secret")
	assert.True(t, m.checkAndRecordNonce("n1"))
	assert.False(t, m.checkAndRecordNonce("n1"))
	assert.True(t, m.checkAndRecordNonce("n2"))
}

func TestNormalizeEdgeEventStampsRequiredFields(t *testing.T) {
	c := &edgeConnection{tenantID: "t1", hostname: "shipper-1"}
	ev := normalizeEdgeEvent(map[string]any{"event_type": "port_scan"}, c)
	assert.Equal(t, "t1", ev["tenant_id"])
	assert.Equal(t, "edge:shipper-1", ev["source"])
	assert.NotEmpty(t, ev["id"])
	assert.NotEmpty(t, ev["timestamp"])
	assert.Equal(t, "LOW", ev["severity"])
}
