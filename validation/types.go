package validation

// MechanismValidationResult contains the outcome of every check run against a mechanism result
type MechanismValidationResult struct {
	// AllocationFeasible: no good (or generic unit) is allocated beyond its supply
	AllocationFeasible bool

	// BidsMatched: every winner received exactly one of the bids submitted by that winner, at its declared value
	BidsMatched bool

	// PaymentsNonNegative: no bidder is paid by the mechanism
	PaymentsNonNegative bool

	// PaymentsOnlyWinners: non-winners pay nothing
	PaymentsOnlyWinners bool

	// IndividuallyRational: no winner pays more than the declared value of the accepted bid
	IndividuallyRational bool

	// CoreChecked is set when a formulation was supplied for the core stability check
	CoreChecked bool
	CoreStable  bool

	ValidationDetails []string
}

// IsValid returns true if all checks that were run passed
func (r *MechanismValidationResult) IsValid() bool {
	valid := r.AllocationFeasible && r.BidsMatched && r.PaymentsNonNegative && r.PaymentsOnlyWinners && r.IndividuallyRational
	if r.CoreChecked {
		valid = valid && r.CoreStable
	}
	return valid
}
