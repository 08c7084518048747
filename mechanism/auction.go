package mechanism

import (
	"fmt"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/wdp"
)

// Rule selects the payment rule applied by RunAuction.
type Rule int

const (
	RuleVCG Rule = iota
	RuleCCG
)

func (r Rule) String() string {
	if r == RuleCCG {
		return "ccg"
	}
	return "vcg"
}

// Mechanism is implemented by VCG and CCG.
type Mechanism interface {
	MechanismResult() (*core.MechanismResult, error)
}

// AuctionInput describes one auction run. Exactly one of XORBids and
// GenericBids must be set.
type AuctionInput struct {
	XORBids     []core.XORBid
	GenericBids []core.GenericBid

	// Reserves are per good for XOR bids and per unit of a definition for generic bids
	Reserves map[string]float64

	// AdjustmentFactors are per-bidder value multipliers keyed by lower-case bidder ID
	AdjustmentFactors map[string]float64

	Rule Rule

	// Nonce is mixed into the result digest
	Nonce string
}

// AuctionResult contains the complete results of running an auction.
type AuctionResult struct {
	Result *core.MechanismResult

	// RejectedBids contains bids that failed reserve enforcement
	RejectedBids []core.RejectedBid

	// Iterations is the number of blocking coalition searches (CCG only)
	Iterations int

	// WinnerDeterminator is the formulation the payments were computed on
	// (nil when every bid was rejected)
	WinnerDeterminator wdp.WinnerDeterminator

	// Digest is the hex SHA-256 of the canonical result encoding, see core.ComputeResultHash
	Digest string
}

// RunAuction executes the auction pipeline: adjustment → reserve enforcement →
// winner determination → payment rule.
//
// Processing flow:
//  1. Apply bid adjustment factors (multipliers per bidder)
//  2. Enforce reserve prices
//  3. Build the winner determination formulation
//  4. Compute the allocation and payments with the selected rule
//  5. Digest the result together with the input nonce
//
// An empty bid set is a usage error; bid sets emptied by reserves yield an
// empty allocation.
func RunAuction(input AuctionInput, params Params) (*AuctionResult, error) {
	if (input.XORBids == nil) == (input.GenericBids == nil) {
		return nil, fmt.Errorf("exactly one of xor bids and generic bids must be provided")
	}

	var (
		wd       wdp.WinnerDeterminator
		rejected []core.RejectedBid
		err      error
	)
	if input.XORBids != nil {
		if len(input.XORBids) == 0 {
			return nil, core.ErrNoBids
		}
		// Step 1: Apply bid adjustment factors
		bids := input.XORBids
		if len(input.AdjustmentFactors) > 0 {
			bids = core.ApplyBidAdjustmentFactors(bids, input.AdjustmentFactors)
		}

		// Step 2: Enforce reserve prices
		bids, rejected = core.EnforceReservePrices(bids, input.Reserves)
		if len(bids) == 0 {
			return emptyAuctionResult(rejected, input.Nonce, params)
		}

		// Step 3: Formulation
		wd, err = wdp.NewXOR(bids, params.Solver)
	} else {
		if len(input.GenericBids) == 0 {
			return nil, core.ErrNoBids
		}
		bids := input.GenericBids
		if len(input.AdjustmentFactors) > 0 {
			bids = core.ApplyGenericBidAdjustmentFactors(bids, input.AdjustmentFactors)
		}
		bids, rejected = core.EnforceGenericReservePrices(bids, input.Reserves)
		if len(bids) == 0 {
			return emptyAuctionResult(rejected, input.Nonce, params)
		}
		wd, err = wdp.NewGeneric(bids, params.Solver)
	}
	if err != nil {
		return nil, err
	}

	// Step 4: Payment rule
	result := &AuctionResult{RejectedBids: rejected, WinnerDeterminator: wd}
	switch input.Rule {
	case RuleCCG:
		ccg := NewCCG(wd, params)
		result.Result, err = ccg.MechanismResult()
		result.Iterations = ccg.Iterations()
	default:
		result.Result, err = NewVCG(wd, params).MechanismResult()
	}
	if err != nil {
		return nil, fmt.Errorf("%s payments: %w", input.Rule, err)
	}

	// Step 5: Digest
	if result.Digest, err = core.ComputeResultHash(result.Result, input.Nonce); err != nil {
		return nil, err
	}

	params.Logger.Info().
		Str("rule", input.Rule.String()).
		Int("rejected_bids", len(rejected)).
		Strs("winners", result.Result.Allocation.WinnerIDs()).
		Float64("total_value", result.Result.Allocation.TotalValue()).
		Float64("revenue", result.Result.Payment.Total()).
		Str("digest", result.Digest).
		Msg("auction complete")
	return result, nil
}

func emptyAuctionResult(rejected []core.RejectedBid, nonce string, params Params) (*AuctionResult, error) {
	params.Logger.Info().Int("rejected_bids", len(rejected)).Msg("all bids rejected by reserve prices")
	result := &AuctionResult{
		Result: &core.MechanismResult{
			Allocation: core.EmptyAllocation(),
			Payment:    core.NewPayment(nil),
		},
		RejectedBids: rejected,
	}
	digest, err := core.ComputeResultHash(result.Result, nonce)
	if err != nil {
		return nil, err
	}
	result.Digest = digest
	return result, nil
}
