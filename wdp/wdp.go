// Package wdp formulates and solves the winner determination problem of a
// combinatorial auction: pick at most one bid per bidder so that no good is
// over-allocated and total declared value is maximal.
package wdp

import (
	"fmt"
	"math"
	"sort"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/solver"
)

// AcceptanceThreshold is how close to 1 a bid variable must resolve for the
// bid to count as accepted.
const AcceptanceThreshold = 1e-3

// ScaleHeadroom is the fraction of the solver's coefficient ceiling that the
// largest scaled bid value may occupy.
const ScaleHeadroom = 0.9

// WinnerDeterminator computes value-maximizing feasible allocations. XOR and
// Generic are the only implementations.
//
// A WinnerDeterminator is single-writer: AdjustPayoffs mutates its program in
// place. Callers that need an independent, payoff-adjusted formulation must
// call CopyOf first.
type WinnerDeterminator interface {
	// CalculateAllocation solves the formulation once and caches the result.
	CalculateAllocation() (*core.Allocation, error)

	// WithoutBidder returns a new formulation over every bid except the bidder's.
	WithoutBidder(bidder core.Bidder) (WinnerDeterminator, error)

	// CopyOf rebuilds the formulation from the original bids, without payoff adjustments.
	CopyOf() (WinnerDeterminator, error)

	// AdjustPayoffs changes the objective to total declared value minus the
	// payoffs (keyed by bidder ID) of every listed bidder that is represented
	// in the allocation.
	AdjustPayoffs(payoffs map[string]float64) error

	// Scale returns the factor applied to every value coefficient.
	Scale() float64

	base() *formulation
}

// offer is the decision variable of one submitted bid.
type offer struct {
	bidder core.Bidder
	index  int
	value  float64
	v      solver.Var
}

// formulation carries what XOR and Generic share: one binary per bid, the
// per-bidder exclusivity constraints, the scaled objective and the cache.
type formulation struct {
	kind    string
	params  solver.Params
	scale   float64
	program *solver.Program
	bidders []core.Bidder
	offers  map[string][]offer
	payoffs map[string]float64
	result  *core.Allocation
	extract func(o offer) core.BidderAllocation
}

// ComputeScale returns the factor that keeps maxValue within
// ScaleHeadroom of the coefficient ceiling; 1 when no scaling is needed.
func ComputeScale(maxValue, maxCoefficient float64) float64 {
	ceiling := ScaleHeadroom * maxCoefficient
	if maxValue > ceiling {
		return ceiling / maxValue
	}
	return 1
}

// newFormulation builds bid variables, exclusivity constraints and the objective.
// values[i] lists the declared values of bidders[i]'s bids.
func newFormulation(kind string, params solver.Params, bidders []core.Bidder, values [][]float64) *formulation {
	params = params.WithDefaults()

	maxValue := 0.0
	for _, vs := range values {
		for _, v := range vs {
			maxValue = math.Max(maxValue, v)
		}
	}

	f := &formulation{
		kind:    kind,
		params:  params,
		scale:   ComputeScale(maxValue, params.MaxCoefficient),
		program: solver.NewProgram(kind+"-wdp", solver.Maximize),
		bidders: make([]core.Bidder, 0, len(bidders)),
		offers:  make(map[string][]offer, len(bidders)),
	}

	order := make([]int, len(bidders))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return bidders[order[a]].ID() < bidders[order[b]].ID() })

	for _, i := range order {
		bidder := bidders[i]
		if len(values[i]) == 0 {
			continue
		}
		f.bidders = append(f.bidders, bidder)
		terms := make([]solver.Term, 0, len(values[i]))
		for j, value := range values[i] {
			v := f.program.AddBinary(fmt.Sprintf("x_%s_%d", bidder.ID(), j))
			f.program.AddObjectiveTerm(v, f.scale*value)
			f.offers[bidder.ID()] = append(f.offers[bidder.ID()], offer{bidder: bidder, index: j, value: value, v: v})
			terms = append(terms, solver.Term{Var: v, Coef: 1})
		}
		f.program.AddConstraint(solver.Constraint{
			Name:  "exclusive_" + bidder.ID(),
			Terms: terms,
			Op:    solver.LessEq,
			RHS:   1,
		})
	}

	if f.scale != 1 {
		f.params.Logger.Info().Str("formulation", kind).Float64("max_value", maxValue).Float64("scale", f.scale).Msg("scaling bid values into solver range")
	}
	return f
}

func (f *formulation) base() *formulation { return f }

// Scale returns the factor applied to every value coefficient.
func (f *formulation) Scale() float64 { return f.scale }

// AdjustPayoffs adds, per listed bidder, a binary "represented" indicator
// linked to the bidder's bid variables by
//
//	indicator ≥ Σx / M   and   indicator ≤ M·Σx
//
// and subtracts scale·payoff·indicator from the objective. M is the number of
// the bidder's bids, an upper bound on Σx. Bidders without bids here are ignored.
func (f *formulation) AdjustPayoffs(payoffs map[string]float64) error {
	ids := make([]string, 0, len(payoffs))
	for id, payoff := range payoffs {
		if math.IsNaN(payoff) || math.IsInf(payoff, 0) {
			return fmt.Errorf("%w: payoff %v for bidder %s", core.ErrInvalidValue, payoff, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if f.payoffs == nil {
		f.payoffs = make(map[string]float64, len(payoffs))
	}
	for _, id := range ids {
		offers := f.offers[id]
		if len(offers) == 0 {
			continue
		}
		bigM := float64(len(offers))
		indicator := f.program.AddBinary("represented_" + id)

		lower := []solver.Term{{Var: indicator, Coef: 1}}
		upper := []solver.Term{{Var: indicator, Coef: 1}}
		for _, o := range offers {
			lower = append(lower, solver.Term{Var: o.v, Coef: -1 / bigM})
			upper = append(upper, solver.Term{Var: o.v, Coef: -bigM})
		}
		f.program.AddConstraint(solver.Constraint{Name: "represented_lb_" + id, Terms: lower, Op: solver.GreaterEq, RHS: 0})
		f.program.AddConstraint(solver.Constraint{Name: "represented_ub_" + id, Terms: upper, Op: solver.LessEq, RHS: 0})
		f.program.AddObjectiveTerm(indicator, -f.scale*payoffs[id])
		f.payoffs[id] += payoffs[id]
	}

	f.result = nil
	return nil
}

// CalculateAllocation solves the program on first use and caches the allocation.
func (f *formulation) CalculateAllocation() (*core.Allocation, error) {
	if f.result != nil {
		return f.result, nil
	}
	if len(f.bidders) == 0 {
		f.result = core.EmptyAllocation()
		return f.result, nil
	}

	sol, err := solver.Solve(f.program, f.params)
	if err != nil {
		return nil, fmt.Errorf("%s winner determination: %w", f.kind, err)
	}

	trades := make([]core.BidderAllocation, 0)
	for _, bidder := range f.bidders {
		for _, o := range f.offers[bidder.ID()] {
			if sol.Value(o.v) > 1-AcceptanceThreshold {
				trades = append(trades, f.extract(o))
				break
			}
		}
	}

	allocation := core.NewAllocation(trades)
	if sol.Suboptimal {
		allocation = allocation.AsSuboptimal()
	}

	f.params.Logger.Debug().
		Str("formulation", f.kind).
		Int("bidders", len(f.bidders)).
		Int("winners", len(trades)).
		Float64("total_value", allocation.TotalValue()).
		Float64("objective", sol.Objective/f.scale).
		Bool("payoffs_adjusted", len(f.payoffs) > 0).
		Msg("winner determination solved")

	f.result = allocation
	return f.result, nil
}

// checkBidders validates the bidder side of a bid set: non-empty, a single
// world and unique IDs. counts[i] is the number of bids of bidders[i].
func checkBidders(bidders []core.Bidder, counts []int) error {
	total := 0
	for _, c := range counts {
		total += c
	}
	if len(bidders) == 0 || total == 0 {
		return core.ErrNoBids
	}

	for _, b := range bidders {
		if b == nil {
			return fmt.Errorf("%w: nil bidder", core.ErrNoBids)
		}
	}

	seen := make(map[string]bool, len(bidders))
	world := bidders[0].WorldID()
	for _, b := range bidders {
		if b.WorldID() != world {
			return fmt.Errorf("%w: bidder %s is in world %s, expected %s", core.ErrWorldMismatch, b.ID(), b.WorldID(), world)
		}
		if seen[b.ID()] {
			return fmt.Errorf("%w: %s", core.ErrDuplicateBidder, b.ID())
		}
		seen[b.ID()] = true
	}
	return nil
}
