package coordinator

import (
	"context"
	"fmt"

	"github.com/hornet-sec/hornet/pkg/agent"
	"github.com/hornet-sec/hornet/pkg/models"
)

// buildAgentContext assembles the agent.Context a phase's agent calls
// see: the incident's current entity set and every finding recorded so
// far, oldest first.
func (c *Coordinator) buildAgentContext(ctx context.Context, inc *models.Incident) (agent.Context, error) {
	entities, err := c.store.GetIncidentEntities(ctx, inc.TenantID, inc.ID)
	if err != nil {
		return agent.Context{}, err
	}
	findings, err := c.store.ListFindings(ctx, inc.TenantID, inc.ID)
	if err != nil {
		return agent.Context{}, err
	}

	ac := agent.Context{
		TenantID:   inc.TenantID,
		IncidentID: inc.ID,
		EventID:    inc.EventID,
	}
	for _, e := range entities {
		ac.Entities = append(ac.Entities, agent.Entity{Type: e.Type, Value: e.Value})
	}
	for _, f := range findings {
		ac.PriorFindings = append(ac.PriorFindings, agent.AgentOutput{
			AgentName:  f.Agent,
			OutputType: agent.OutputType(f.FindingType),
			Confidence: f.Confidence,
			Reasoning:  f.Reasoning,
			Content:    f.Content,
			TokensUsed: f.TokensConsumed,
		})
	}
	return ac, nil
}

// runDetection calls the router agent to re-derive activation and
// confidence from the squad's findings (already persisted by the
// dispatcher), then dismisses or continues on THRESHOLD_DISMISS.
func (c *Coordinator) runDetection(ctx context.Context, inc *models.Incident) error {
	router, ok := c.registry.Get("router")
	if ok {
		ac, err := c.buildAgentContext(ctx, inc)
		if err != nil {
			return err
		}
		out, err := router.Execute(ctx, ac)
		if err != nil {
			return err
		}
		c.recordFinding(ctx, inc, models.FindingTypeRouting, out)
		inc.Confidence = out.Confidence
	}

	if inc.Confidence < c.thresholdDismiss() {
		c.closeIncident(ctx, inc, models.OutcomeDismissed)
		return nil
	}
	c.transition(ctx, inc, models.StateEnrichment, "")
	return nil
}

// runEnrichment calls the intel agent and the campaign correlator over
// the incident's current entity set, then always proceeds to ANALYSIS
// (spec: ENRICHMENT has no dismiss gate of its own).
func (c *Coordinator) runEnrichment(ctx context.Context, inc *models.Incident) error {
	if intel, ok := c.registry.Get("intel"); ok {
		ac, err := c.buildAgentContext(ctx, inc)
		if err != nil {
			return err
		}
		out, err := intel.Execute(ctx, ac)
		if err != nil {
			return err
		}
		c.recordFinding(ctx, inc, models.FindingTypeEnrichment, out)
	}

	if c.correlator != nil {
		if err := c.correlator.Correlate(ctx, inc.TenantID, inc.ID); err != nil {
			// Correlation failure degrades campaign linkage, not the
			// incident's own investigation — logged, not escalated.
			c.recordCorrelationFailure(ctx, inc, err)
		}
	}

	c.transition(ctx, inc, models.StateAnalysis, "")
	return nil
}

func (c *Coordinator) recordCorrelationFailure(ctx context.Context, inc *models.Incident, err error) {
	c.recordFinding(ctx, inc, models.FindingTypeEnrichment, agent.AgentOutput{
		AgentName:  "campaign_correlator",
		OutputType: agent.OutputTypeEnrich,
		Reasoning:  fmt.Sprintf("correlation failed: %v", err),
	})
}

// runAnalysis calls the analyst agent, stores its verdict and
// confidence on the incident, and gates on THRESHOLD_INVESTIGATE.
func (c *Coordinator) runAnalysis(ctx context.Context, inc *models.Incident) error {
	analyst, ok := c.registry.Get("analyst")
	if !ok {
		c.transition(ctx, inc, models.StateProposal, "")
		return nil
	}

	ac, err := c.buildAgentContext(ctx, inc)
	if err != nil {
		return err
	}
	out, err := analyst.Execute(ctx, ac)
	if err != nil {
		return err
	}
	c.recordFinding(ctx, inc, models.FindingTypeAnalysis, out)
	inc.Confidence = out.Confidence
	if severity, ok := out.Content["severity"].(string); ok {
		inc.Severity = models.Severity(severity)
	}
	if summary, ok := out.Content["summary"].(string); ok {
		inc.Summary = summary
	}
	if err := c.store.UpdateIncident(ctx, inc.TenantID, inc.ID, storageIncidentSummaryUpdate(inc)); err != nil {
		return err
	}

	if inc.Confidence < c.thresholdInvestigate() {
		c.closeIncident(ctx, inc, models.OutcomeDismissed)
		return nil
	}
	c.transition(ctx, inc, models.StateProposal, "")
	return nil
}

// runProposal calls the responder agent; its proposal content is
// carried forward as a finding for OVERSIGHT to read back.
func (c *Coordinator) runProposal(ctx context.Context, inc *models.Incident) error {
	responder, ok := c.registry.Get("responder")
	if ok {
		ac, err := c.buildAgentContext(ctx, inc)
		if err != nil {
			return err
		}
		out, err := responder.Execute(ctx, ac)
		if err != nil {
			return err
		}
		c.recordFinding(ctx, inc, models.FindingTypeProposal, out)
	}
	c.transition(ctx, inc, models.StateOversight, "")
	return nil
}

// runOversight calls the oversight agent and branches on its decision:
// APPROVE/PARTIAL persists the proposal's actions as PROPOSED ->
// APPROVED and moves to EXECUTION; VETO/ESCALATE captures the reason
// and moves to ESCALATED.
func (c *Coordinator) runOversight(ctx context.Context, inc *models.Incident) error {
	oversight, ok := c.registry.Get("oversight")
	if !ok {
		c.transition(ctx, inc, models.StateExecution, "")
		return nil
	}

	ac, err := c.buildAgentContext(ctx, inc)
	if err != nil {
		return err
	}
	out, err := oversight.Execute(ctx, ac)
	if err != nil {
		return err
	}
	c.recordFinding(ctx, inc, models.FindingTypeOversight, out)

	decision, _ := out.Content["decision"].(string)
	switch decision {
	case agent.OversightVeto:
		reason, _ := out.Content["veto_reason"].(string)
		if reason == "" {
			reason, _ = out.Content["escalation_reason"].(string)
		}
		if reason == "" {
			reason = "governance veto"
		}
		inc.EscalationReason = reason
		c.transition(ctx, inc, models.StateEscalated, reason)
	case agent.OversightEscalate:
		reason, _ := out.Content["escalation_reason"].(string)
		if reason == "" {
			reason = "requires human review"
		}
		inc.EscalationReason = reason
		c.transition(ctx, inc, models.StateEscalated, reason)
	default: // APPROVE or PARTIAL
		if err := c.approveActions(ctx, inc); err != nil {
			return err
		}
		c.transition(ctx, inc, models.StateExecution, "")
	}
	return nil
}

// approveActions materializes the responder's proposed actions
// (gathered from the most recent "proposal" finding) as Action rows in
// PROPOSED, then immediately advances them to APPROVED — oversight has
// just approved this incident's whole action set.
func (c *Coordinator) approveActions(ctx context.Context, inc *models.Incident) error {
	findings, err := c.store.ListFindings(ctx, inc.TenantID, inc.ID)
	if err != nil {
		return err
	}
	for i := len(findings) - 1; i >= 0; i-- {
		f := findings[i]
		if f.FindingType != models.FindingTypeProposal {
			continue
		}
		actions, _ := f.Content["actions"].([]any)
		for idx, raw := range actions {
			am, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			a := actionFromMap(inc, idx, am)
			if err := c.store.CreateAction(ctx, a); err != nil {
				return err
			}
			if err := c.store.UpdateActionStatus(ctx, inc.TenantID, a.ID, models.ActionApproved, "", ""); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// runExecution hands the approved action set to the Action Executor
// and closes the incident with the outcome it reports. With no
// executor wired, the incident closes resolved with no actions run —
// the correct behavior for a detection-only deployment.
func (c *Coordinator) runExecution(ctx context.Context, inc *models.Incident) error {
	outcome := models.OutcomeResolved
	if c.executor != nil {
		result, err := c.executor.Execute(ctx, inc.TenantID, inc.ID)
		if err != nil {
			return err
		}
		outcome = result
	}
	c.closeIncident(ctx, inc, outcome)
	return nil
}
