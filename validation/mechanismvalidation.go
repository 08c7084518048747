package validation

import (
	"fmt"
	"math"
	"sort"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/mechanism"
	"github.com/cloudx-io/ccgauction/wdp"
)

// DefaultTolerance is used when the input does not set one.
const DefaultTolerance = 1e-6

// MechanismValidationInput contains all inputs needed to re-check a mechanism result.
// Exactly one of XORBids and GenericBids must be set.
type MechanismValidationInput struct {
	Result      *core.MechanismResult
	XORBids     []core.XORBid
	GenericBids []core.GenericBid

	// WinnerDeterminator enables the core stability check (optional)
	WinnerDeterminator wdp.WinnerDeterminator

	Tolerance float64
}

// ValidateMechanismResult independently verifies a mechanism result:
// - Allocation is feasible
// - Every winner got one of the bids they submitted
// - Payments are non-negative and charged to winners only
// - No winner pays more than the declared value of the accepted bid
// - No coalition blocks the payments (when a formulation is supplied)
//
// Returns:
//   - MechanismValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, solver failure)
func ValidateMechanismResult(input *MechanismValidationInput) (*MechanismValidationResult, error) {
	if input == nil || input.Result == nil || input.Result.Allocation == nil || input.Result.Payment == nil {
		return nil, fmt.Errorf("mechanism result missing")
	}
	if (input.XORBids == nil) == (input.GenericBids == nil) {
		return nil, fmt.Errorf("exactly one of xor bids and generic bids must be provided")
	}
	tolerance := input.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	result := &MechanismValidationResult{}
	allocation := input.Result.Allocation

	if input.XORBids != nil {
		result.AllocationFeasible = validateBundleFeasibility(allocation, result)
		result.BidsMatched = validateXORBidsMatched(allocation, input.XORBids, result)
	} else {
		result.AllocationFeasible = validateGenericFeasibility(allocation, input.GenericBids, result)
		result.BidsMatched = validateGenericBidsMatched(allocation, input.GenericBids, result)
	}

	result.PaymentsNonNegative, result.PaymentsOnlyWinners, result.IndividuallyRational = validatePayments(input.Result, tolerance, result)

	if input.WinnerDeterminator != nil {
		result.CoreChecked = true
		stable, err := validateCoreStability(input.WinnerDeterminator, input.Result, tolerance, result)
		if err != nil {
			return nil, fmt.Errorf("core stability check: %w", err)
		}
		result.CoreStable = stable
	}

	return result, nil
}

func validateBundleFeasibility(allocation *core.Allocation, result *MechanismValidationResult) bool {
	owner := make(map[string]string)
	feasible := true
	for _, id := range allocation.WinnerIDs() {
		trade, _ := allocation.Get(id)
		for _, g := range trade.Bundle {
			if other, taken := owner[g.ID]; taken {
				result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Good %s allocated to both %s and %s", g.ID, other, id))
				feasible = false
				continue
			}
			owner[g.ID] = id
		}
	}
	if feasible {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Allocation feasible: %d goods allocated to %d winners", len(owner), len(allocation.WinnerIDs())))
	}
	return feasible
}

func validateGenericFeasibility(allocation *core.Allocation, bids []core.GenericBid, result *MechanismValidationResult) bool {
	supply := make(map[string]int)
	for _, bid := range bids {
		for _, qb := range bid.Bids {
			for _, q := range qb.Quantities {
				supply[q.Definition.ID] = q.Definition.Supply
			}
		}
	}

	used := make(map[string]int)
	for _, id := range allocation.WinnerIDs() {
		trade, _ := allocation.Get(id)
		for _, q := range trade.Quantities {
			used[q.Definition.ID] += q.Quantity
		}
	}

	definitions := make([]string, 0, len(used))
	for def := range used {
		definitions = append(definitions, def)
	}
	sort.Strings(definitions)

	feasible := true
	for _, def := range definitions {
		if used[def] > supply[def] {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Definition %s over-allocated: %d units, supply %d", def, used[def], supply[def]))
			feasible = false
		}
	}
	if feasible {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Allocation feasible: %d generic definitions within supply", len(definitions)))
	}
	return feasible
}

func validateXORBidsMatched(allocation *core.Allocation, bids []core.XORBid, result *MechanismValidationResult) bool {
	submitted := make(map[string][]core.BundleBid, len(bids))
	for _, bid := range bids {
		submitted[bid.Bidder.ID()] = bid.Bids
	}

	matched := true
	for _, id := range allocation.WinnerIDs() {
		trade, _ := allocation.Get(id)
		own := submitted[id]
		if trade.AcceptedBid < 0 || trade.AcceptedBid >= len(own) {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner %s holds bid %d that was never submitted", id, trade.AcceptedBid))
			matched = false
			continue
		}
		bid := own[trade.AcceptedBid]
		if bid.Bundle.String() != trade.Bundle.String() || bid.Value != trade.Value {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner %s allocated %s at %.6f, bid was %s at %.6f", id, trade.Bundle, trade.Value, bid.Bundle, bid.Value))
			matched = false
		}
	}
	if matched {
		result.ValidationDetails = append(result.ValidationDetails, "Winner bids validation passed")
	}
	return matched
}

func validateGenericBidsMatched(allocation *core.Allocation, bids []core.GenericBid, result *MechanismValidationResult) bool {
	submitted := make(map[string][]core.QuantityBid, len(bids))
	for _, bid := range bids {
		submitted[bid.Bidder.ID()] = bid.Bids
	}

	matched := true
	for _, id := range allocation.WinnerIDs() {
		trade, _ := allocation.Get(id)
		own := submitted[id]
		if trade.AcceptedBid < 0 || trade.AcceptedBid >= len(own) {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner %s holds bid %d that was never submitted", id, trade.AcceptedBid))
			matched = false
			continue
		}
		bid := own[trade.AcceptedBid]
		if bid.Quantities.String() != trade.Quantities.String() || bid.Value != trade.Value {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner %s allocated %s at %.6f, bid was %s at %.6f", id, trade.Quantities, trade.Value, bid.Quantities, bid.Value))
			matched = false
		}
	}
	if matched {
		result.ValidationDetails = append(result.ValidationDetails, "Winner bids validation passed")
	}
	return matched
}

func validatePayments(mr *core.MechanismResult, tolerance float64, result *MechanismValidationResult) (nonNegative, onlyWinners, rational bool) {
	nonNegative, onlyWinners, rational = true, true, true
	for _, id := range mr.Payment.BidderIDs() {
		amount := mr.Payment.Of(id)
		if amount < -tolerance {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bidder %s has negative payment %.6f", id, amount))
			nonNegative = false
		}
		if !mr.Allocation.IsWinner(id) && math.Abs(amount) > tolerance {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Non-winner %s pays %.6f", id, amount))
			onlyWinners = false
		}
		if mr.Allocation.IsWinner(id) && amount > mr.Allocation.TradeValue(id)+tolerance {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner %s pays %.6f above the declared value %.6f", id, amount, mr.Allocation.TradeValue(id)))
			rational = false
		}
	}
	if nonNegative && onlyWinners && rational {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Payment validation passed: revenue %.6f", mr.Payment.Total()))
	}
	return nonNegative, onlyWinners, rational
}

func validateCoreStability(wd wdp.WinnerDeterminator, mr *core.MechanismResult, tolerance float64, result *MechanismValidationResult) (bool, error) {
	blocking, err := mechanism.FindBlockingCoalition(wd, mr.Allocation, mr.Payment.Amounts())
	if err != nil {
		return false, err
	}
	total := mr.Payment.Total()
	if blocking.Zp <= total+tolerance {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Core stability validation passed: z_p %.6f, revenue %.6f", blocking.Zp, total))
		return true, nil
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Blocking coalition %v gains %.6f over revenue %.6f", blocking.Allocation.WinnerIDs(), blocking.Zp-total, total))
	return false, nil
}
