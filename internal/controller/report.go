package controller

import "time"

// Outcome is what happened to one plant in a cycle.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeWatered Outcome = "watered"
	OutcomeFault   Outcome = "fault"
)

// PlantReport summarises one plant's evaluation.
type PlantReport struct {
	Plant    string
	Initial  uint16 // reading that decided dry or not
	Final    uint16 // last reading seen
	Outcome  Outcome
	Duration time.Duration // pump running time
	Err      error
}

// Report summarises one cycle. Plants are in evaluation order; a plant is
// missing when a sensor fault ended the cycle before it was evaluated.
type Report struct {
	Start  time.Time
	End    time.Time
	Plants []PlantReport
	Fault  error // sensor fault that cut the cycle short
}

// Watered returns the names of the plants that reached their wet threshold.
func (r Report) Watered() []string {
	var names []string
	for _, p := range r.Plants {
		if p.Outcome == OutcomeWatered {
			names = append(names, p.Plant)
		}
	}
	return names
}
