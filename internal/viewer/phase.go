package viewer

import "time"

// Phase of a viewer session
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseProvisioning Phase = "provisioning"
	PhaseRendering    Phase = "rendering"
	PhaseTornDown     Phase = "torn_down"
)

// Terminal reports whether no transition can leave the phase
func (p Phase) Terminal() bool {
	return p == PhaseTornDown
}

// allowed lists the legal transitions; torn_down is reachable from anywhere
var allowed = map[Phase][]Phase{
	PhaseIdle:         {PhaseProvisioning, PhaseRendering},
	PhaseProvisioning: {PhaseRendering, PhaseIdle},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseTornDown {
		return true
	}
	for _, p := range allowed[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transition records one phase change
type Transition struct {
	From   Phase     `json:"from"`
	To     Phase     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}
