package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/storage"
)

// Executor satisfies pkg/coordinator's ActionExecutor interface.
type Executor struct {
	store      *storage.Store
	connectors *ConnectorRegistry
}

// New constructs an Executor over a connector registry.
func New(store *storage.Store, connectors *ConnectorRegistry) *Executor {
	return &Executor{store: store, connectors: connectors}
}

// Execute runs every APPROVED action on the incident's plan, group by
// group, and returns the overall outcome for the Coordinator to close
// with.
func (e *Executor) Execute(ctx context.Context, tenantID, incidentID string) (models.IncidentOutcome, error) {
	actions, err := e.store.ListActionsForIncident(ctx, tenantID, incidentID)
	if err != nil {
		return "", err
	}

	completed := make(map[string]bool)
	anyFailed := false
	anyRan := false

	for _, group := range groupByParallelGroup(actions) {
		runnable, blocked := partitionByDependencies(group, completed)

		for _, a := range blocked {
			anyFailed = true
			// Actions only ever reach FAILED by way of EXECUTING on the
			// legal ladder, even when they're skipped rather than run.
			if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionExecuting, "", ""); err != nil {
				slog.Error("executor failed to mark blocked action executing", "action_id", a.ID, "error", err)
			}
			if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionFailed, "blocked: a predecessor action failed", ""); err != nil {
				slog.Error("executor failed to record blocked action", "action_id", a.ID, "error", err)
			}
		}

		if len(runnable) == 0 {
			continue
		}
		anyRan = true

		g, gctx := errgroup.WithContext(ctx)
		for _, a := range runnable {
			a := a
			g.Go(func() error {
				ok := e.runOne(gctx, tenantID, a)
				if ok {
					completed[a.ID] = true
				} else {
					anyFailed = true
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	switch {
	case !anyRan && !anyFailed:
		return models.OutcomeResolved, nil
	case anyFailed:
		return models.OutcomePartialFailure, nil
	default:
		return models.OutcomeResolved, nil
	}
}

// runOne validates, executes and records a single action, returning
// whether it completed successfully.
func (e *Executor) runOne(ctx context.Context, tenantID string, a models.Action) bool {
	if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionExecuting, "", ""); err != nil {
		slog.Error("executor failed to mark executing", "action_id", a.ID, "error", err)
	}

	connector, ok := e.connectors.Get(a.ActionType)
	if !ok {
		if isNotificationClass(a.ActionType) {
			if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionCompleted, "", ""); err != nil {
				slog.Error("executor failed to complete notification action", "action_id", a.ID, "error", err)
			}
			metrics.RecordActionExecuted(a.ActionType, string(models.ActionCompleted))
			return true
		}
		e.failTyped(ctx, tenantID, a.ID, a.ActionType, fmt.Errorf("no connector registered for action_type %q", a.ActionType))
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultCallDeadline)
	defer cancel()

	if err := connector.Validate(callCtx, a.Target, a.Parameters); err != nil {
		e.failTyped(ctx, tenantID, a.ID, a.ActionType, fmt.Errorf("validate: %w", err))
		return false
	}

	handle, err := connector.Execute(callCtx, a.Target, a.Parameters)
	if err != nil {
		e.failTyped(ctx, tenantID, a.ID, a.ActionType, fmt.Errorf("execute: %w", err))
		return false
	}

	if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionCompleted, "", handle); err != nil {
		slog.Error("executor failed to record completed action", "action_id", a.ID, "error", err)
	}
	metrics.RecordActionExecuted(a.ActionType, string(models.ActionCompleted))
	return true
}

func (e *Executor) failTyped(ctx context.Context, tenantID, actionID, actionType string, err error) {
	slog.Warn("executor action failed", "action_id", actionID, "error", err)
	if uErr := e.store.UpdateActionStatus(ctx, tenantID, actionID, models.ActionFailed, err.Error(), ""); uErr != nil {
		slog.Error("executor failed to record failed action", "action_id", actionID, "error", uErr)
	}
	metrics.RecordActionExecuted(actionType, string(models.ActionFailed))
}

// isNotificationClass reports whether an action type has no side
// effect outside messaging and so may complete with no connector
// configured (spec §4.6).
func isNotificationClass(actionType string) bool {
	t := strings.ToLower(actionType)
	return strings.Contains(t, "notify") || strings.Contains(t, "notification") || strings.Contains(t, "alert_")
}

func groupByParallelGroup(actions []models.Action) [][]models.Action {
	byGroup := map[int][]models.Action{}
	for _, a := range actions {
		byGroup[a.ParallelGroup] = append(byGroup[a.ParallelGroup], a)
	}
	groupIDs := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groupIDs = append(groupIDs, g)
	}
	sort.Ints(groupIDs)

	out := make([][]models.Action, 0, len(groupIDs))
	for _, g := range groupIDs {
		members := byGroup[g]
		sort.Slice(members, func(i, j int) bool { return members[i].Order < members[j].Order })
		out = append(out, members)
	}
	return out
}

// partitionByDependencies splits a parallel group into actions whose
// predecessors have all completed (runnable), and those with at least
// one predecessor absent from completed (blocked). Only APPROVED
// actions are considered at all — anything else already reached a
// terminal, non-executable state (REJECTED, VETOED) and is silently
// skipped.
func partitionByDependencies(group []models.Action, completed map[string]bool) (runnable, blocked []models.Action) {
	for _, a := range group {
		if a.Status != models.ActionApproved {
			continue
		}
		ok := true
		for _, dep := range a.Dependencies {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			runnable = append(runnable, a)
		} else {
			blocked = append(blocked, a)
		}
	}
	return runnable, blocked
}

// Rollback walks the incident's action history in reverse and calls
// the matching connector's Rollback for each COMPLETED action with a
// recorded handle.
func (e *Executor) Rollback(ctx context.Context, tenantID, incidentID string) error {
	actions, err := e.store.ListActionsForIncident(ctx, tenantID, incidentID)
	if err != nil {
		return err
	}

	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		if a.Status != models.ActionCompleted || a.RollbackHandle == "" {
			continue
		}
		connector, ok := e.connectors.Get(a.ActionType)
		if !ok {
			slog.Warn("executor rollback skipped, no connector", "action_id", a.ID, "action_type", a.ActionType)
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, DefaultCallDeadline)
		err := connector.Rollback(callCtx, a.RollbackHandle)
		cancel()
		if err != nil {
			slog.Error("executor rollback failed", "action_id", a.ID, "error", err)
			continue
		}
		if err := e.store.UpdateActionStatus(ctx, tenantID, a.ID, models.ActionRolledBack, "", ""); err != nil {
			slog.Error("executor failed to record rollback", "action_id", a.ID, "error", err)
		}
	}
	return nil
}
