package wdp

import (
	"fmt"
	"sort"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/solver"
)

// XOR is the bundle-based formulation: one binary per (bidder, bundle) bid,
// at most one accepted bid per bidder and every good allocated at most once.
type XOR struct {
	*formulation
	bids []core.XORBid
}

// NewXOR validates the bid set and builds its formulation.
func NewXOR(bids []core.XORBid, params solver.Params) (*XOR, error) {
	if err := validateXOR(bids); err != nil {
		return nil, err
	}
	x := buildXOR(copyXORBids(bids), params)
	x.params.Logger.Debug().Int("bidders", len(x.bidders)).Float64("scale", x.scale).Msg("xor winner determination built")
	return x, nil
}

func validateXOR(bids []core.XORBid) error {
	bidders := make([]core.Bidder, len(bids))
	counts := make([]int, len(bids))
	for i, bid := range bids {
		bidders[i] = bid.Bidder
		counts[i] = len(bid.Bids)
	}
	if err := checkBidders(bidders, counts); err != nil {
		return err
	}

	world := bidders[0].WorldID()
	for _, bid := range bids {
		for j, bb := range bid.Bids {
			if !core.ValidValue(bb.Value) {
				return fmt.Errorf("%w: bidder %s bid %d declares %v", core.ErrInvalidValue, bid.Bidder.ID(), j, bb.Value)
			}
			if _, err := core.NewBundle(bb.Bundle...); err != nil {
				return fmt.Errorf("bidder %s bid %d: %w", bid.Bidder.ID(), j, err)
			}
			for _, g := range bb.Bundle {
				if g.World != world {
					return fmt.Errorf("%w: good %s in bid of %s is from world %s", core.ErrWorldMismatch, g.ID, bid.Bidder.ID(), g.World)
				}
			}
		}
	}
	return nil
}

func buildXOR(bids []core.XORBid, params solver.Params) *XOR {
	bidders := make([]core.Bidder, len(bids))
	values := make([][]float64, len(bids))
	byBidder := make(map[string]core.XORBid, len(bids))
	for i, bid := range bids {
		bidders[i] = bid.Bidder
		values[i] = make([]float64, len(bid.Bids))
		for j, bb := range bid.Bids {
			values[i][j] = bb.Value
		}
		byBidder[bid.Bidder.ID()] = bid
	}

	f := newFormulation("xor", params, bidders, values)

	goodVars := make(map[string][]solver.Term)
	for _, bidder := range f.bidders {
		for _, o := range f.offers[bidder.ID()] {
			for _, g := range byBidder[bidder.ID()].Bids[o.index].Bundle {
				goodVars[g.ID] = append(goodVars[g.ID], solver.Term{Var: o.v, Coef: 1})
			}
		}
	}
	goods := make([]string, 0, len(goodVars))
	for id := range goodVars {
		goods = append(goods, id)
	}
	sort.Strings(goods)
	for _, id := range goods {
		f.program.AddConstraint(solver.Constraint{
			Name:  "good_" + id,
			Terms: goodVars[id],
			Op:    solver.LessEq,
			RHS:   1,
		})
	}

	f.extract = func(o offer) core.BidderAllocation {
		bb := byBidder[o.bidder.ID()].Bids[o.index]
		return core.BidderAllocation{
			Bidder:      o.bidder,
			Value:       bb.Value,
			Bundle:      bb.Bundle,
			AcceptedBid: o.index,
		}
	}

	return &XOR{formulation: f, bids: bids}
}

// WithoutBidder rebuilds the formulation over everyone else's bids.
func (x *XOR) WithoutBidder(bidder core.Bidder) (WinnerDeterminator, error) {
	if bidder == nil {
		return nil, fmt.Errorf("%w: nil bidder", core.ErrNoBids)
	}
	rest := make([]core.XORBid, 0, len(x.bids))
	for _, bid := range x.bids {
		if bid.Bidder.ID() != bidder.ID() {
			rest = append(rest, bid)
		}
	}
	return buildXOR(rest, x.params), nil
}

// CopyOf rebuilds the formulation from the original bids.
func (x *XOR) CopyOf() (WinnerDeterminator, error) {
	return buildXOR(x.bids, x.params), nil
}

// Bids returns the bid sets the formulation was built from.
func (x *XOR) Bids() []core.XORBid {
	return copyXORBids(x.bids)
}

func copyXORBids(bids []core.XORBid) []core.XORBid {
	out := make([]core.XORBid, len(bids))
	for i, bid := range bids {
		out[i] = core.XORBid{Bidder: bid.Bidder, Bids: make([]core.BundleBid, len(bid.Bids))}
		copy(out[i].Bids, bid.Bids)
	}
	return out
}
