package agent

import (
	"context"
	"fmt"
	"strings"
)

// The stub implementations below are deterministic, dependency-free
// agents: they inspect Context.RawPayload/Entities with simple
// heuristics instead of calling an LLM. They exist for two reasons —
// they are the bundled default squad a fresh install can run without
// external configuration, and they give the dispatcher/coordinator
// test suites fully reproducible agent behavior. A production
// deployment registers real, LLM-backed agents under the same names
// instead; nothing in pkg/dispatcher or pkg/coordinator depends on
// these concrete types.

type stubConfidence struct {
	name       string
	outputType OutputType
	score      func(Context) (float64, string)
	cost       int
}

func (s stubConfidence) Name() string { return s.name }

func (s stubConfidence) Execute(ctx context.Context, ac Context) (AgentOutput, error) {
	select {
	case <-ctx.Done():
		return AgentOutput{}, ctx.Err()
	default:
	}
	confidence, reasoning := s.score(ac)
	return AgentOutput{
		AgentName:  s.name,
		OutputType: s.outputType,
		Confidence: confidence,
		Reasoning:  reasoning,
		Content:    map[string]any{"heuristic": s.name},
		TokensUsed: s.cost,
	}, nil
}

func payloadString(ac Context, key string) string {
	v, _ := ac.RawPayload[key].(string)
	return strings.ToLower(v)
}

// NewHunterAgent flags event types that look like reconnaissance or
// exploitation attempts based on the raw event_type string.
func NewHunterAgent() Agent {
	return stubConfidence{
		name:       "hunter",
		outputType: OutputTypeDetection,
		cost:       120,
		score: func(ac Context) (float64, string) {
			t := payloadString(ac, "event_type")
			switch {
			case strings.Contains(t, "exploit"), strings.Contains(t, "injection"):
				return 0.9, "event_type indicates active exploitation"
			case strings.Contains(t, "scan"), strings.Contains(t, "recon"):
				return 0.55, "event_type indicates reconnaissance"
			default:
				return 0.1, "no exploitation or recon signature"
			}
		},
	}
}

// NewSentinelAgent scores on declared severity.
func NewSentinelAgent() Agent {
	return stubConfidence{
		name:       "sentinel",
		outputType: OutputTypeDetection,
		cost:       90,
		score: func(ac Context) (float64, string) {
			switch strings.ToUpper(payloadString(ac, "severity")) {
			case "CRITICAL":
				return 0.95, "critical severity reported by source"
			case "HIGH":
				return 0.7, "high severity reported by source"
			case "MEDIUM":
				return 0.35, "medium severity reported by source"
			default:
				return 0.05, "low or unspecified severity"
			}
		},
	}
}

// NewBehavioralAgent scores on entity count — a high entity fan-out on
// a single event is a simple anomaly proxy.
func NewBehavioralAgent() Agent {
	return stubConfidence{
		name:       "behavioral",
		outputType: OutputTypeDetection,
		cost:       150,
		score: func(ac Context) (float64, string) {
			n := len(ac.Entities)
			switch {
			case n >= 5:
				return 0.8, fmt.Sprintf("%d entities touched, anomalous fan-out", n)
			case n >= 2:
				return 0.4, fmt.Sprintf("%d entities touched", n)
			default:
				return 0.1, "single entity, no behavioral anomaly"
			}
		},
	}
}

// NewNetwatchAgent flags network-origin entities (ip/domain).
func NewNetwatchAgent() Agent {
	return stubConfidence{
		name:       "netwatch",
		outputType: OutputTypeDetection,
		cost:       100,
		score: func(ac Context) (float64, string) {
			for _, e := range ac.Entities {
				if e.Type == "ip" || e.Type == "domain" {
					return 0.5, "network entity present: " + e.Type
				}
			}
			return 0.1, "no network entities on event"
		},
	}
}

// NewEndpointAgent flags host/process entities.
func NewEndpointAgent() Agent {
	return stubConfidence{
		name:       "endpoint",
		outputType: OutputTypeDetection,
		cost:       100,
		score: func(ac Context) (float64, string) {
			for _, e := range ac.Entities {
				if e.Type == "host" || e.Type == "process" {
					return 0.45, "endpoint entity present: " + e.Type
				}
			}
			return 0.1, "no endpoint entities on event"
		},
	}
}

// NewRouterAgent runs in DETECTION after the squad: it re-derives
// which agents fired above a noise floor and reports the detection
// squad's own confidence ceiling as its routing confidence, so the
// Coordinator's dismiss/continue decision is driven by the same signal
// the dispatcher used to promote the incident.
func NewRouterAgent() Agent {
	return routerAgent{}
}

type routerAgent struct{}

func (routerAgent) Name() string { return "router" }

func (routerAgent) Execute(ctx context.Context, ac Context) (AgentOutput, error) {
	select {
	case <-ctx.Done():
		return AgentOutput{}, ctx.Err()
	default:
	}
	var maxConf float64
	var activated []string
	for _, f := range ac.PriorFindings {
		if f.Confidence > 0.2 {
			activated = append(activated, f.AgentName)
		}
		if f.Confidence > maxConf {
			maxConf = f.Confidence
		}
	}
	return AgentOutput{
		AgentName:  "router",
		OutputType: OutputTypeRouting,
		Confidence: maxConf,
		Reasoning:  fmt.Sprintf("%d of %d detection agents activated", len(activated), len(ac.PriorFindings)),
		Content:    map[string]any{"activated_agents": activated},
		TokensUsed: 40,
	}, nil
}

// NewIntelAgent is the ENRICHMENT-phase external-intel stand-in: it
// reports a neutral finding without asserting any threat-intel match,
// since no real intel source is wired in this configuration.
func NewIntelAgent() Agent {
	return stubConfidence{
		name:       "intel",
		outputType: OutputTypeEnrich,
		cost:       200,
		score: func(ac Context) (float64, string) {
			return 0.0, "no external intel source configured"
		},
	}
}

// AnalystVerdict values the coordinator's ANALYSIS phase reads back
// out of an AgentOutput's Content map under the "verdict" key.
const (
	VerdictConfirmed = "CONFIRMED"
	VerdictDismissed = "DISMISSED"
	VerdictUncertain = "UNCERTAIN"
)

// NewAnalystAgent emits a verdict derived from the confidence already
// accumulated on prior findings — confirming when the router/detection
// signal remained strong through enrichment, dismissing when it did not.
func NewAnalystAgent() Agent {
	return analystAgent{}
}

type analystAgent struct{}

func (analystAgent) Name() string { return "analyst" }

func (analystAgent) Execute(ctx context.Context, ac Context) (AgentOutput, error) {
	select {
	case <-ctx.Done():
		return AgentOutput{}, ctx.Err()
	default:
	}
	var maxConf float64
	for _, f := range ac.PriorFindings {
		if f.Confidence > maxConf {
			maxConf = f.Confidence
		}
	}
	verdict := VerdictUncertain
	severity := "MEDIUM"
	switch {
	case maxConf >= 0.75:
		verdict = VerdictConfirmed
		severity = "HIGH"
	case maxConf < 0.4:
		verdict = VerdictDismissed
		severity = "LOW"
	}
	return AgentOutput{
		AgentName:  "analyst",
		OutputType: OutputTypeAnalysis,
		Confidence: maxConf,
		Reasoning:  fmt.Sprintf("verdict derived from peak prior confidence %.2f", maxConf),
		Content: map[string]any{
			"verdict":  verdict,
			"severity": severity,
			"summary":  fmt.Sprintf("analysis verdict %s at confidence %.2f", verdict, maxConf),
		},
		TokensUsed: 600,
	}, nil
}

// NewResponderAgent proposes no actions by default — a deployment with
// Connectors wired registers a real responder under this name instead.
func NewResponderAgent() Agent {
	return responderAgent{}
}

type responderAgent struct{}

func (responderAgent) Name() string { return "responder" }

func (responderAgent) Execute(ctx context.Context, ac Context) (AgentOutput, error) {
	select {
	case <-ctx.Done():
		return AgentOutput{}, ctx.Err()
	default:
	}
	return AgentOutput{
		AgentName:  "responder",
		OutputType: OutputTypeProposal,
		Confidence: 0,
		Reasoning:  "no response playbook configured for this event class",
		Content:    map[string]any{"actions": []any{}},
		TokensUsed: 80,
	}, nil
}

// Oversight decisions the coordinator's OVERSIGHT phase switches on.
const (
	OversightApprove  = "APPROVE"
	OversightPartial  = "PARTIAL"
	OversightEscalate = "ESCALATE"
	OversightVeto     = "VETO"
)

// NewOversightAgent approves proposals with no actions (nothing to
// govern) and escalates anything with a non-empty action list to a
// human, since no automated policy engine is wired in this
// configuration — a conservative default rather than auto-approving
// blind.
func NewOversightAgent() Agent {
	return oversightAgent{}
}

type oversightAgent struct{}

func (oversightAgent) Name() string { return "oversight" }

func (oversightAgent) Execute(ctx context.Context, ac Context) (AgentOutput, error) {
	select {
	case <-ctx.Done():
		return AgentOutput{}, ctx.Err()
	default:
	}
	decision := OversightApprove
	reason := ""
	for _, f := range ac.PriorFindings {
		if f.OutputType != OutputTypeProposal {
			continue
		}
		if actions, ok := f.Content["actions"].([]any); ok && len(actions) > 0 {
			decision = OversightEscalate
			reason = "no automated governance policy configured for non-empty proposals"
		}
	}
	content := map[string]any{"decision": decision}
	if reason != "" {
		content["escalation_reason"] = reason
	}
	return AgentOutput{
		AgentName:  "oversight",
		OutputType: OutputTypeOversight,
		Confidence: 1,
		Reasoning:  "default conservative governance policy",
		Content:    content,
		TokensUsed: 60,
	}, nil
}

// RegisterDefaults populates r with the bundled stub squad plus the
// router/intel/analyst/responder/oversight agents under their
// canonical names.
func RegisterDefaults(r *Registry) {
	r.Register(NewHunterAgent())
	r.Register(NewSentinelAgent())
	r.Register(NewBehavioralAgent())
	r.Register(NewNetwatchAgent())
	r.Register(NewEndpointAgent())
	r.Register(NewRouterAgent())
	r.Register(NewIntelAgent())
	r.Register(NewAnalystAgent())
	r.Register(NewResponderAgent())
	r.Register(NewOversightAgent())
}
