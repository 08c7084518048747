package wdp

import (
	"fmt"
	"sort"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/solver"
)

// Generic is the quantity-based (XOR-Q) formulation: bids request quantities
// of interchangeable generic definitions, and for every definition the
// accepted quantities must fit its supply.
type Generic struct {
	*formulation
	bids     []core.GenericBid
	supplies map[string]int
}

// NewGeneric validates the bid set and builds its formulation.
func NewGeneric(bids []core.GenericBid, params solver.Params) (*Generic, error) {
	supplies, err := validateGeneric(bids)
	if err != nil {
		return nil, err
	}
	g := buildGeneric(copyGenericBids(bids), supplies, params)
	g.params.Logger.Debug().Int("bidders", len(g.bidders)).Int("definitions", len(supplies)).Float64("scale", g.scale).Msg("generic winner determination built")
	return g, nil
}

// validateGeneric checks the bid set and returns the supply per definition ID.
func validateGeneric(bids []core.GenericBid) (map[string]int, error) {
	bidders := make([]core.Bidder, len(bids))
	counts := make([]int, len(bids))
	for i, bid := range bids {
		bidders[i] = bid.Bidder
		counts[i] = len(bid.Bids)
	}
	if err := checkBidders(bidders, counts); err != nil {
		return nil, err
	}

	world := bidders[0].WorldID()
	supplies := make(map[string]int)
	for _, bid := range bids {
		for j, qb := range bid.Bids {
			if !core.ValidValue(qb.Value) {
				return nil, fmt.Errorf("%w: bidder %s bid %d declares %v", core.ErrInvalidValue, bid.Bidder.ID(), j, qb.Value)
			}
			if _, err := core.NewGenericBundle(qb.Quantities...); err != nil {
				return nil, fmt.Errorf("bidder %s bid %d: %w", bid.Bidder.ID(), j, err)
			}
			for _, q := range qb.Quantities {
				def := q.Definition
				if def.World != world {
					return nil, fmt.Errorf("%w: definition %s in bid of %s is from world %s", core.ErrWorldMismatch, def.ID, bid.Bidder.ID(), def.World)
				}
				if def.Supply < 0 {
					return nil, fmt.Errorf("%w: definition %s has supply %d", core.ErrInvalidQuantity, def.ID, def.Supply)
				}
				if supply, ok := supplies[def.ID]; ok && supply != def.Supply {
					return nil, fmt.Errorf("%w: definition %s declared with supply %d and %d", core.ErrSupplyMismatch, def.ID, supply, def.Supply)
				}
				supplies[def.ID] = def.Supply
			}
		}
	}
	return supplies, nil
}

func buildGeneric(bids []core.GenericBid, supplies map[string]int, params solver.Params) *Generic {
	bidders := make([]core.Bidder, len(bids))
	values := make([][]float64, len(bids))
	byBidder := make(map[string]core.GenericBid, len(bids))
	for i, bid := range bids {
		bidders[i] = bid.Bidder
		values[i] = make([]float64, len(bid.Bids))
		for j, qb := range bid.Bids {
			values[i][j] = qb.Value
		}
		byBidder[bid.Bidder.ID()] = bid
	}

	f := newFormulation("generic", params, bidders, values)

	capacityTerms := make(map[string][]solver.Term)
	for _, bidder := range f.bidders {
		for _, o := range f.offers[bidder.ID()] {
			for _, q := range byBidder[bidder.ID()].Bids[o.index].Quantities {
				capacityTerms[q.Definition.ID] = append(capacityTerms[q.Definition.ID], solver.Term{Var: o.v, Coef: float64(q.Quantity)})
			}
		}
	}
	definitions := make([]string, 0, len(capacityTerms))
	for id := range capacityTerms {
		definitions = append(definitions, id)
	}
	sort.Strings(definitions)
	for _, id := range definitions {
		f.program.AddConstraint(solver.Constraint{
			Name:  "supply_" + id,
			Terms: capacityTerms[id],
			Op:    solver.LessEq,
			RHS:   float64(supplies[id]),
		})
	}

	f.extract = func(o offer) core.BidderAllocation {
		qb := byBidder[o.bidder.ID()].Bids[o.index]
		return core.BidderAllocation{
			Bidder:      o.bidder,
			Value:       qb.Value,
			Quantities:  qb.Quantities,
			AcceptedBid: o.index,
		}
	}

	return &Generic{formulation: f, bids: bids, supplies: supplies}
}

// WithoutBidder rebuilds the formulation over everyone else's bids.
func (g *Generic) WithoutBidder(bidder core.Bidder) (WinnerDeterminator, error) {
	if bidder == nil {
		return nil, fmt.Errorf("%w: nil bidder", core.ErrNoBids)
	}
	rest := make([]core.GenericBid, 0, len(g.bids))
	for _, bid := range g.bids {
		if bid.Bidder.ID() != bidder.ID() {
			rest = append(rest, bid)
		}
	}
	return buildGeneric(rest, g.supplies, g.params), nil
}

// CopyOf rebuilds the formulation from the original bids.
func (g *Generic) CopyOf() (WinnerDeterminator, error) {
	return buildGeneric(g.bids, g.supplies, g.params), nil
}

// Supply returns the supply of a generic definition seen in the bids.
func (g *Generic) Supply(definitionID string) int {
	return g.supplies[definitionID]
}

func copyGenericBids(bids []core.GenericBid) []core.GenericBid {
	out := make([]core.GenericBid, len(bids))
	for i, bid := range bids {
		out[i] = core.GenericBid{Bidder: bid.Bidder, Bids: make([]core.QuantityBid, len(bid.Bids))}
		copy(out[i].Bids, bid.Bids)
	}
	return out
}
