package coordinator

import (
	"time"

	"github.com/hornet-sec/hornet/pkg/models"
)

// legalTransitions mirrors spec §4.5's state table. Any transition not
// listed here is rejected by transition() and the incident stays put.
var legalTransitions = map[models.IncidentState]map[models.IncidentState]bool{
	models.StateIdle: {
		models.StateDetection: true,
	},
	models.StateDetection: {
		models.StateEnrichment: true,
		models.StateClosed:     true,
		models.StateEscalated:  true,
	},
	models.StateEnrichment: {
		models.StateAnalysis:  true,
		models.StateEscalated: true,
	},
	models.StateAnalysis: {
		models.StateProposal:  true,
		models.StateClosed:    true,
		models.StateEscalated: true,
	},
	models.StateProposal: {
		models.StateOversight: true,
		models.StateClosed:    true,
		models.StateEscalated: true,
	},
	models.StateOversight: {
		models.StateExecution: true,
		models.StateClosed:    true,
		models.StateEscalated: true,
	},
	models.StateExecution: {
		models.StateClosed:    true,
		models.StateError:     true,
		models.StateEscalated: true,
	},
	models.StateEscalated: {
		models.StateClosed:   true,
		models.StateAnalysis: true,
	},
	models.StateError: {
		models.StateClosed: true,
	},
}

// canTransition reports whether from -> to is a legal FSM edge.
func canTransition(from, to models.IncidentState) bool {
	return legalTransitions[from][to]
}

// phaseDeadlines are the default per-phase timeouts, seconds, from
// spec §4.5. A Coordinator may be configured with overrides; these are
// the values applied when none is supplied.
var phaseDeadlines = map[models.IncidentState]time.Duration{
	models.StateDetection:  15 * time.Second,
	models.StateEnrichment: 10 * time.Second,
	models.StateAnalysis:   30 * time.Second,
	models.StateProposal:   20 * time.Second,
	models.StateOversight:  30 * time.Second,
	models.StateExecution:  60 * time.Second,
	models.StateEscalated:  1800 * time.Second,
}

// totalPhaseDeadline is the sum of every phase deadline, the basis for
// the per-incident lock TTL (spec §4.5: "TTL greater than the sum of
// phase deadlines").
func totalPhaseDeadline() time.Duration {
	var total time.Duration
	for _, d := range phaseDeadlines {
		total += d
	}
	return total
}

// Threshold gates, spec §4.5.
const (
	ThresholdDismiss     = 0.30
	ThresholdInvestigate = 0.60
)

// terminalStates are states process() stops advancing from.
var terminalStates = map[models.IncidentState]bool{
	models.StateClosed:    true,
	models.StateError:     true,
	models.StateEscalated: true,
}
