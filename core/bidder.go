package core

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ValueFunc computes a bidder's value for a bundle.
type ValueFunc func(bundle Bundle) float64

// GenericValueFunc computes a bidder's value for a quantity vector.
type GenericValueFunc func(bundle GenericBundle) float64

// SimpleBidder is a Bidder backed by plain value functions.
type SimpleBidder struct {
	id           string
	world        uuid.UUID
	value        ValueFunc
	genericValue GenericValueFunc
}

// NewBidder creates a bidder in the given world. A nil value function values every bundle at 0.
func NewBidder(id string, world uuid.UUID, value ValueFunc) *SimpleBidder {
	return &SimpleBidder{id: id, world: world, value: value}
}

// NewGenericBidder creates a bidder that values quantity vectors.
func NewGenericBidder(id string, world uuid.UUID, value GenericValueFunc) *SimpleBidder {
	return &SimpleBidder{id: id, world: world, genericValue: value}
}

func (b *SimpleBidder) ID() string         { return b.id }
func (b *SimpleBidder) WorldID() uuid.UUID { return b.world }

func (b *SimpleBidder) CalculateValue(bundle Bundle) float64 {
	if b.value == nil {
		return 0
	}
	return b.value(bundle)
}

func (b *SimpleBidder) CalculateGenericValue(bundle GenericBundle) float64 {
	if b.genericValue == nil {
		return 0
	}
	return b.genericValue(bundle)
}

func (b *SimpleBidder) String() string {
	return b.id
}

// AdditiveValue returns a ValueFunc summing per-good values. Unknown goods are worth 0.
func AdditiveValue(perGood map[string]float64) ValueFunc {
	return func(bundle Bundle) float64 {
		total := 0.0
		for _, g := range bundle {
			total += perGood[g.ID]
		}
		return total
	}
}

// TruthfulXORBid declares every bundle at the bidder's own value for it.
func TruthfulXORBid(bidder Bidder, bundles ...Bundle) (XORBid, error) {
	bid := XORBid{Bidder: bidder, Bids: make([]BundleBid, 0, len(bundles))}
	for _, bundle := range bundles {
		for _, g := range bundle {
			if g.World != bidder.WorldID() {
				return XORBid{}, fmt.Errorf("%w: good %s is not in bidder %s's world", ErrWorldMismatch, g.ID, bidder.ID())
			}
		}
		bid.Bids = append(bid.Bids, BundleBid{Bundle: bundle, Value: bidder.CalculateValue(bundle)})
	}
	return bid, nil
}

// TruthfulGenericBid declares every quantity vector at the bidder's own value for it.
// The bidder must implement GenericValuer.
func TruthfulGenericBid(bidder Bidder, bundles ...GenericBundle) (GenericBid, error) {
	valuer, ok := bidder.(GenericValuer)
	if !ok {
		return GenericBid{}, fmt.Errorf("bidder %s cannot value generic bundles", bidder.ID())
	}
	bid := GenericBid{Bidder: bidder, Bids: make([]QuantityBid, 0, len(bundles))}
	for _, bundle := range bundles {
		for _, q := range bundle {
			if q.Definition.World != bidder.WorldID() {
				return GenericBid{}, fmt.Errorf("%w: definition %s is not in bidder %s's world", ErrWorldMismatch, q.Definition.ID, bidder.ID())
			}
		}
		bid.Bids = append(bid.Bids, QuantityBid{Quantities: bundle, Value: valuer.CalculateGenericValue(bundle)})
	}
	return bid, nil
}

// ValidValue reports whether v can be used as a declared bid value.
func ValidValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
