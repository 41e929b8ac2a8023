package config

// Defaults holds system-wide fallback values merged (via dario.cat/mergo)
// into any configuration tree that doesn't override them — the same
// defaults-merging role the teacher's pkg/config.Defaults plays for its
// LLM/chain configuration, generalized to HORNET's detection and action
// parameters. Load merges this section like any other, but no
// component reads it, so none of the fields below takes effect.
type Defaults struct {
	// TokenBudget seeds Incident.TokenBudget for an incident whose
	// promoting event carried none.
	TokenBudget int `yaml:"token_budget,omitempty"`

	// DetectionSquad names the agents run per event when no per-tenant
	// override is configured.
	DetectionSquad []string `yaml:"detection_squad,omitempty"`

	// ActionRiskLevel is applied to a proposed action whose content map
	// omitted risk_level.
	ActionRiskLevel string `yaml:"action_risk_level,omitempty"`

	// WebhookMasking controls whether outbound webhook bodies redact
	// entity values flagged sensitive before leaving the process.
	WebhookMasking *WebhookMaskingDefaults `yaml:"webhook_masking,omitempty"`
}

// WebhookMaskingDefaults mirrors the teacher's alert-masking knob,
// repointed at HORNET's outbound connector payloads rather than
// inbound alert storage.
type WebhookMaskingDefaults struct {
	Enabled      bool   `yaml:"enabled"`
	PatternGroup string `yaml:"pattern_group"`
}
