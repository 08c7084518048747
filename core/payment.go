package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Payment maps bidder IDs to non-negative amounts. Bidders not present pay 0.
type Payment struct {
	amounts map[string]float64
}

// NewPayment copies the given amounts.
func NewPayment(amounts map[string]float64) *Payment {
	p := &Payment{amounts: make(map[string]float64, len(amounts))}
	for id, amount := range amounts {
		p.amounts[id] = amount
	}
	return p
}

// Of returns the amount owed by the bidder.
func (p *Payment) Of(bidderID string) float64 {
	return p.amounts[bidderID]
}

// Amounts returns a copy of all recorded amounts.
func (p *Payment) Amounts() map[string]float64 {
	out := make(map[string]float64, len(p.amounts))
	for id, amount := range p.amounts {
		out[id] = amount
	}
	return out
}

// BidderIDs returns the sorted IDs with a recorded amount.
func (p *Payment) BidderIDs() []string {
	ids := make([]string, 0, len(p.amounts))
	for id := range p.amounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Total returns the revenue. Summation uses decimal arithmetic in bidder ID
// order so equal payment vectors always produce the same total.
func (p *Payment) Total() float64 {
	return SumAmounts(p.amounts)
}

// SumAmounts adds amounts in key order with decimal arithmetic.
func SumAmounts(amounts map[string]float64) float64 {
	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := decimal.Zero
	for _, id := range ids {
		total = total.Add(decimal.NewFromFloat(amounts[id]))
	}
	result, _ := total.Float64()
	return result
}

// MechanismResult pairs an allocation with the payments charged for it.
type MechanismResult struct {
	Allocation *Allocation
	Payment    *Payment
}
