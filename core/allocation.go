package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BidderAllocation is what a single winner receives.
type BidderAllocation struct {
	Bidder Bidder

	// Value is the declared value of the accepted bid (unscaled)
	Value float64

	// Bundle is set for XOR allocations
	Bundle Bundle

	// Quantities is set for generic allocations
	Quantities GenericBundle

	// AcceptedBid is the index of the accepted bid within the bidder's submitted bids
	AcceptedBid int
}

// Allocation is the immutable outcome of winner determination.
type Allocation struct {
	trades     map[string]BidderAllocation
	winners    []string
	totalValue float64
	suboptimal bool
}

// NewAllocation builds an allocation from per-winner trades. The total value
// is the sum of the winners' declared values.
func NewAllocation(trades []BidderAllocation) *Allocation {
	a := &Allocation{
		trades:  make(map[string]BidderAllocation, len(trades)),
		winners: make([]string, 0, len(trades)),
	}
	total := decimal.Zero
	for _, t := range trades {
		id := t.Bidder.ID()
		a.trades[id] = t
		a.winners = append(a.winners, id)
		total = total.Add(decimal.NewFromFloat(t.Value))
	}
	sort.Strings(a.winners)
	a.totalValue, _ = total.Float64()
	return a
}

// EmptyAllocation returns an allocation with no winners and zero value.
func EmptyAllocation() *Allocation {
	return NewAllocation(nil)
}

// AsSuboptimal returns a copy of the allocation flagged as coming from a
// solve that hit its limit before proving optimality.
func (a *Allocation) AsSuboptimal() *Allocation {
	cp := *a
	cp.trades = make(map[string]BidderAllocation, len(a.trades))
	for id, t := range a.trades {
		cp.trades[id] = t
	}
	cp.winners = a.WinnerIDs()
	cp.suboptimal = true
	return &cp
}

// Suboptimal reports whether the allocation may not be value-maximizing.
func (a *Allocation) Suboptimal() bool {
	return a.suboptimal
}

// TotalValue returns the sum of the winners' declared values.
func (a *Allocation) TotalValue() float64 {
	return a.totalValue
}

// Winners returns the winners sorted by bidder ID.
func (a *Allocation) Winners() []Bidder {
	winners := make([]Bidder, len(a.winners))
	for i, id := range a.winners {
		winners[i] = a.trades[id].Bidder
	}
	return winners
}

// WinnerIDs returns the sorted winner IDs.
func (a *Allocation) WinnerIDs() []string {
	ids := make([]string, len(a.winners))
	copy(ids, a.winners)
	return ids
}

// IsWinner reports whether the bidder received anything.
func (a *Allocation) IsWinner(bidderID string) bool {
	_, ok := a.trades[bidderID]
	return ok
}

// Get returns the bidder's allocation and whether the bidder won.
func (a *Allocation) Get(bidderID string) (BidderAllocation, bool) {
	t, ok := a.trades[bidderID]
	return t, ok
}

// TradeValue returns the winner's declared value, 0 for non-winners.
func (a *Allocation) TradeValue(bidderID string) float64 {
	return a.trades[bidderID].Value
}
