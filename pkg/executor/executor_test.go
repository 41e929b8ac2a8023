package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hornet-sec/hornet/pkg/models"
)

func TestConnectorRegistryGet(t *testing.T) {
	reg := NewConnectorRegistry()
	_, ok := reg.Get("block_ip")
	assert.False(t, ok)

	fc := &fakeConnector{}
	reg.Register("block_ip", fc)
	got, ok := reg.Get("block_ip")
	assert.True(t, ok)
	assert.Same(t, fc, got)
}

func TestIsNotificationClass(t *testing.T) {
	assert.True(t, isNotificationClass("notify_slack"))
	assert.True(t, isNotificationClass("SEND_NOTIFICATION"))
	assert.True(t, isNotificationClass("alert_oncall"))
	assert.False(t, isNotificationClass("block_ip"))
}

func TestPartitionByDependencies(t *testing.T) {
	completed := map[string]bool{"a1": true}
	group := []models.Action{
		{ID: "a2", Status: models.ActionApproved, Dependencies: []string{"a1"}},
		{ID: "a3", Status: models.ActionApproved, Dependencies: []string{"missing"}},
		{ID: "a4", Status: models.ActionRejected},
	}
	runnable, blocked := partitionByDependencies(group, completed)
	assert.Len(t, runnable, 1)
	assert.Equal(t, "a2", runnable[0].ID)
	assert.Len(t, blocked, 1)
	assert.Equal(t, "a3", blocked[0].ID)
}

func TestGroupByParallelGroupOrdersByGroupThenOrder(t *testing.T) {
	actions := []models.Action{
		{ID: "b", ParallelGroup: 0, Order: 1},
		{ID: "a", ParallelGroup: 0, Order: 0},
		{ID: "c", ParallelGroup: 1, Order: 0},
	}
	groups := groupByParallelGroup(actions)
	assert.Len(t, groups, 2)
	assert.Equal(t, []string{"a", "b"}, []string{groups[0][0].ID, groups[0][1].ID})
	assert.Equal(t, "c", groups[1][0].ID)
}

// fakeConnector is a minimal in-memory Connector for tests.
type fakeConnector struct {
	validateErr error
	executeErr  error
	handle      string
	executed    []string
	rolledBack  []string
}

func (f *fakeConnector) Validate(_ context.Context, _ string, _ map[string]any) error {
	return f.validateErr
}

func (f *fakeConnector) Execute(_ context.Context, target string, _ map[string]any) (string, error) {
	if f.executeErr != nil {
		return "", f.executeErr
	}
	f.executed = append(f.executed, target)
	return f.handle, nil
}

func (f *fakeConnector) Rollback(_ context.Context, handle string) error {
	f.rolledBack = append(f.rolledBack, handle)
	return nil
}

func (f *fakeConnector) HealthCheck(_ context.Context) error {
	return nil
}

var _ Connector = (*fakeConnector)(nil)
