package engine

import "github.com/rewired-gh/sentinel/internal/models"

var playbooks = map[models.ClassificationType]models.Playbook{
	models.ClassNoise: {
		ID: "PB-NOISE-01",
		Actions: []string{
			"Re-verify factual basis against primary sources",
			"Check additional sources before acting",
			"Set reevaluation timer: 15 minutes",
		},
		Reevaluation: "15m",
	},
	models.ClassFracture: {
		ID: "PB-FRACTURE-01",
		Actions: []string{
			"Raise risk level: reassess open positions immediately",
			"Run the stop-loss checklist",
			"Check impact on related tickers",
			"Reevaluate at the close",
		},
		Reevaluation: "close",
	},
	models.ClassCatalyst: {
		ID: "PB-CATALYST-01",
		Actions: []string{
			"Tighten tracking: monitor at 15-minute intervals",
			"Check momentum in related tickers",
			"Watch for narrative shift",
			"Reevaluate at the close",
		},
		Reevaluation: "close",
	},
}

var unknownPlaybook = models.Playbook{
	ID:           "PB-UNKNOWN-01",
	Actions:      []string{"Manual review required"},
	Reevaluation: "30m",
}

// PlaybookFor looks up the action playbook for a classification type,
// falling back to the manual-review playbook for unrecognized types.
func PlaybookFor(t models.ClassificationType) models.Playbook {
	if pb, ok := playbooks[t]; ok {
		return pb
	}
	return unknownPlaybook
}
