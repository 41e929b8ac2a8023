package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
)

type fakeWriter struct {
	entries []models.AuditLogEntry
}

func (f *fakeWriter) InsertAuditLogEntry(_ context.Context, e models.AuditLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestLogSignsAndPersistsEntry(t *testing.T) {
	w := &fakeWriter{}
	l := New(w, "topsecret")

	l.Log(context.Background(), "tenant-1", "key-1", "incident.action_decision", "action", "act-1",
		map[string]any{"response_type": "approve"}, "127.0.0.1")

	require.Len(t, w.entries, 1)
	entry := w.entries[0]
	assert.Equal(t, "tenant-1", entry.TenantID)
	assert.Equal(t, "incident.action_decision", entry.Action)
	assert.NotEmpty(t, entry.Signature)
	assert.True(t, l.Verify(entry))
}

func TestVerifyRejectsTamperedEntry(t *testing.T) {
	w := &fakeWriter{}
	l := New(w, "topsecret")

	l.Log(context.Background(), "tenant-1", "key-1", "dlq.replay", "retry_job", "job-1", nil, "")
	entry := w.entries[0]

	entry.Action = "dlq.delete"
	assert.False(t, l.Verify(entry))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	w := &fakeWriter{}
	l := New(w, "topsecret")
	l.Log(context.Background(), "tenant-1", "key-1", "config.thresholds_update", "thresholds", "", nil, "")
	entry := w.entries[0]

	other := New(w, "wrong-secret")
	assert.False(t, other.Verify(entry))
}

func TestLogIsNilSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log(context.Background(), "tenant-1", "key-1", "noop", "x", "", nil, "")
	})
}
