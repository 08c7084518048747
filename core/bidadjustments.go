package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ApplyBidAdjustmentFactors multiplies every declared value by the bidder's
// adjustment factor (for example a bidding credit). Bidder IDs are matched
// case-insensitively; bidders without a positive factor are left unchanged.
func ApplyBidAdjustmentFactors(bids []XORBid, adjustmentFactors map[string]float64) []XORBid {
	result := make([]XORBid, len(bids))

	for i, bid := range bids {
		factor := adjustmentFactor(bid.Bidder.ID(), adjustmentFactors)
		result[i] = XORBid{Bidder: bid.Bidder, Bids: make([]BundleBid, len(bid.Bids))}
		for j, bb := range bid.Bids {
			result[i].Bids[j] = BundleBid{Bundle: bb.Bundle, Value: adjustValue(bb.Value, factor)}
		}
	}

	return result
}

// ApplyGenericBidAdjustmentFactors is ApplyBidAdjustmentFactors for quantity bids.
func ApplyGenericBidAdjustmentFactors(bids []GenericBid, adjustmentFactors map[string]float64) []GenericBid {
	result := make([]GenericBid, len(bids))

	for i, bid := range bids {
		factor := adjustmentFactor(bid.Bidder.ID(), adjustmentFactors)
		result[i] = GenericBid{Bidder: bid.Bidder, Bids: make([]QuantityBid, len(bid.Bids))}
		for j, qb := range bid.Bids {
			result[i].Bids[j] = QuantityBid{Quantities: qb.Quantities, Value: adjustValue(qb.Value, factor)}
		}
	}

	return result
}

func adjustmentFactor(bidderID string, adjustmentFactors map[string]float64) float64 {
	if len(adjustmentFactors) > 0 {
		if factor, exists := adjustmentFactors[strings.ToLower(bidderID)]; exists && factor > 0 {
			return factor
		}
	}
	return 1.0
}

func adjustValue(value, factor float64) float64 {
	// Use decimal arithmetic for precise calculation
	adjusted, _ := decimal.NewFromFloat(value).Mul(decimal.NewFromFloat(factor)).Float64()
	return adjusted
}
