package mechanism

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/wdp"
)

// VCG charges every winner the externality it imposes on the other bidders.
type VCG struct {
	wd     wdp.WinnerDeterminator
	params Params
	result *core.MechanismResult
}

// NewVCG wraps a winner determination formulation.
func NewVCG(wd wdp.WinnerDeterminator, params Params) *VCG {
	return &VCG{wd: wd, params: params}
}

// MechanismResult computes the efficient allocation and the VCG payments once.
//
// Processing flow:
//  1. Solve the base winner determination
//  2. For each winner w, solve the problem without w
//  3. payment(w) = value without w − (total value − w's trade value)
//
// Non-winners pay nothing. Negative payments within Epsilon of the total
// value are rounding and are clamped to zero.
func (m *VCG) MechanismResult() (*core.MechanismResult, error) {
	if m.result != nil {
		return m.result, nil
	}

	// Step 1: Efficient allocation
	base, err := m.wd.CalculateAllocation()
	if err != nil {
		return nil, fmt.Errorf("vcg base allocation: %w", err)
	}

	// Steps 2-3: Clarke pivot per winner
	payments := make(map[string]float64, len(base.WinnerIDs()))
	total := decimal.NewFromFloat(base.TotalValue())
	for _, winner := range base.Winners() {
		id := winner.ID()
		valueWithout := total.Sub(decimal.NewFromFloat(base.TradeValue(id)))

		wdWithout, err := m.wd.WithoutBidder(winner)
		if err != nil {
			return nil, fmt.Errorf("vcg formulation without %s: %w", id, err)
		}
		allocationWithout, err := wdWithout.CalculateAllocation()
		if err != nil {
			return nil, fmt.Errorf("vcg allocation without %s: %w", id, err)
		}

		payment, _ := decimal.NewFromFloat(allocationWithout.TotalValue()).Sub(valueWithout).Float64()
		if payment < 0 {
			if payment < -relativeTolerance(m.params.Epsilon, base.TotalValue()) {
				return nil, fmt.Errorf("%w: bidder %s would be paid %.6f", ErrNegativePayment, id, -payment)
			}
			payment = 0
		}
		payments[id] = payment

		m.params.Logger.Debug().Str("bidder", id).Float64("trade_value", base.TradeValue(id)).Float64("payment", payment).Msg("vcg payment")
	}

	m.result = &core.MechanismResult{Allocation: base, Payment: core.NewPayment(payments)}
	m.params.Logger.Info().
		Int("winners", len(payments)).
		Float64("total_value", base.TotalValue()).
		Float64("revenue", m.result.Payment.Total()).
		Msg("vcg payments computed")
	return m.result, nil
}
