package core

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 4 // 4 decimal places for declared values

// RejectedBid identifies a single bid removed before winner determination.
type RejectedBid struct {
	BidderID string `json:"bidder_id"`
	BidIndex int    `json:"bid_index"`
	Reason   string `json:"reason"`
}

// BidMeetsReserve returns true if the declared value meets or exceeds the reserve.
// Uses decimal arithmetic with monetaryPrecision to avoid floating-point errors.
func BidMeetsReserve(value, reserve float64) bool {
	valueDecimal := decimal.NewFromFloat(value).Round(monetaryPrecision)
	reserveDecimal := decimal.NewFromFloat(reserve).Round(monetaryPrecision)

	return valueDecimal.GreaterThanOrEqual(reserveDecimal)
}

// BundleReserve sums the per-good reserve prices of a bundle.
// Goods without a reserve contribute nothing.
func BundleReserve(bundle Bundle, reserves map[string]float64) float64 {
	total := decimal.Zero
	for _, g := range bundle {
		if r, ok := reserves[g.ID]; ok {
			total = total.Add(decimal.NewFromFloat(r))
		}
	}
	result, _ := total.Float64()
	return result
}

// GenericReserve sums per-unit reserve prices times requested quantities.
func GenericReserve(bundle GenericBundle, unitReserves map[string]float64) float64 {
	total := decimal.Zero
	for _, q := range bundle {
		if r, ok := unitReserves[q.Definition.ID]; ok {
			total = total.Add(decimal.NewFromFloat(r).Mul(decimal.NewFromInt(int64(q.Quantity))))
		}
	}
	result, _ := total.Float64()
	return result
}

// EnforceReservePrices drops bundle bids declared below the bundle's reserve.
// Bidders left without any bid are removed entirely.
// Returns eligible bid sets and the rejected bids.
func EnforceReservePrices(bids []XORBid, reserves map[string]float64) (eligible []XORBid, rejected []RejectedBid) {
	eligibleBids := make([]XORBid, 0, len(bids))
	rejectedBids := make([]RejectedBid, 0)

	for _, bid := range bids {
		kept := XORBid{Bidder: bid.Bidder, Bids: make([]BundleBid, 0, len(bid.Bids))}
		for i, bb := range bid.Bids {
			if BidMeetsReserve(bb.Value, BundleReserve(bb.Bundle, reserves)) {
				kept.Bids = append(kept.Bids, bb)
				continue
			}
			rejectedBids = append(rejectedBids, RejectedBid{
				BidderID: bid.Bidder.ID(),
				BidIndex: i,
				Reason:   "below_reserve",
			})
		}
		if len(kept.Bids) > 0 {
			eligibleBids = append(eligibleBids, kept)
		}
	}

	return eligibleBids, rejectedBids
}

// EnforceGenericReservePrices is EnforceReservePrices for quantity bids,
// with reserves given per unit of each generic definition.
func EnforceGenericReservePrices(bids []GenericBid, unitReserves map[string]float64) (eligible []GenericBid, rejected []RejectedBid) {
	eligibleBids := make([]GenericBid, 0, len(bids))
	rejectedBids := make([]RejectedBid, 0)

	for _, bid := range bids {
		kept := GenericBid{Bidder: bid.Bidder, Bids: make([]QuantityBid, 0, len(bid.Bids))}
		for i, qb := range bid.Bids {
			if BidMeetsReserve(qb.Value, GenericReserve(qb.Quantities, unitReserves)) {
				kept.Bids = append(kept.Bids, qb)
				continue
			}
			rejectedBids = append(rejectedBids, RejectedBid{
				BidderID: bid.Bidder.ID(),
				BidIndex: i,
				Reason:   "below_reserve",
			})
		}
		if len(kept.Bids) > 0 {
			eligibleBids = append(eligibleBids, kept)
		}
	}

	return eligibleBids, rejectedBids
}
