package reliability

import "github.com/inventcures/virtual-tumor-board-sub003/internal/domain"

// Decision is the outcome of the Deciding state.
type Decision struct {
	Continue bool
	Reason   domain.StopReason
}

// improvementTolerance absorbs float rounding so a delta of exactly the
// minimum improvement counts as sufficient.
const improvementTolerance = 1e-9

// ShouldContinue applies the stopping rules with the default minimum
// improvement. Rules are checked in order: threshold met, iteration budget
// exhausted, insufficient improvement over the immediately preceding score.
func ShouldContinue(current float64, previous *float64, iteration int, threshold float64, maxIterations int) Decision {
	return decide(current, previous, iteration, threshold, maxIterations, DefaultMinImprovement)
}

func decide(current float64, previous *float64, iteration int, threshold float64, maxIterations int, minImprovement float64) Decision {
	switch {
	case current >= threshold:
		return Decision{Reason: domain.StopThresholdMet}
	case iteration >= maxIterations:
		return Decision{Reason: domain.StopMaxIterations}
	case previous != nil && current-*previous < minImprovement-improvementTolerance:
		return Decision{Reason: domain.StopInsufficientImprovement}
	}
	return Decision{Continue: true}
}
