package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func singleBids(world uuid.UUID, values map[string]float64) []XORBid {
	good := Good{ID: "A", World: world}
	bids := make([]XORBid, 0, len(values))
	for _, id := range sortedKeys(values) {
		bids = append(bids, XORBid{
			Bidder: NewBidder(id, world, nil),
			Bids:   []BundleBid{{Bundle: Bundle{good}, Value: values[id]}},
		})
	}
	return bids
}

func sortedKeys(m map[string]float64) []string {
	p := NewPayment(m)
	return p.BidderIDs()
}

func TestApplyBidAdjustmentFactors(t *testing.T) {
	tests := []struct {
		name              string
		values            map[string]float64
		adjustmentFactors map[string]float64
		expectedValues    map[string]float64
	}{
		{
			name:   "Basic adjustment factors",
			values: map[string]float64{"bidder_a": 2.00, "bidder_b": 1.50, "bidder_c": 3.00},
			adjustmentFactors: map[string]float64{
				"bidder_a": 1.0,
				"bidder_b": 0.9,
				"bidder_c": 1.1,
			},
			expectedValues: map[string]float64{
				"bidder_a": 2.00, // no adjustment
				"bidder_b": 1.35, // 1.50 * 0.9
				"bidder_c": 3.30, // 3.00 * 1.1
			},
		},
		{
			name:   "Case-insensitive bidder matching",
			values: map[string]float64{"Bidder_A": 2.00, "BIDDER_B": 1.50},
			adjustmentFactors: map[string]float64{
				"bidder_a": 1.2,
				"bidder_b": 0.8,
			},
			expectedValues: map[string]float64{
				"Bidder_A": 2.40,
				"BIDDER_B": 1.20,
			},
		},
		{
			name:              "No adjustment factors",
			values:            map[string]float64{"bidder_a": 2.00},
			adjustmentFactors: map[string]float64{},
			expectedValues:    map[string]float64{"bidder_a": 2.00},
		},
		{
			name:              "Non-positive factors are ignored",
			values:            map[string]float64{"bidder_a": 2.00, "bidder_b": 1.50},
			adjustmentFactors: map[string]float64{"bidder_a": 0, "bidder_b": -1},
			expectedValues:    map[string]float64{"bidder_a": 2.00, "bidder_b": 1.50},
		},
		{
			name:              "Decimal precision",
			values:            map[string]float64{"bidder_a": 2.1, "bidder_b": 3.3, "bidder_c": 12.34},
			adjustmentFactors: map[string]float64{"bidder_a": 1.1, "bidder_b": 0.33, "bidder_c": 0.789},
			expectedValues:    map[string]float64{"bidder_a": 2.31, "bidder_b": 1.089, "bidder_c": 9.73626},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bids := singleBids(uuid.New(), tt.values)
			adjusted := ApplyBidAdjustmentFactors(bids, tt.adjustmentFactors)

			assert.Equal(t, len(bids), len(adjusted))
			for i, bid := range adjusted {
				check.Equal(t, bids[i].Bidder.ID(), bid.Bidder.ID())
				check.Equal(t, tt.expectedValues[bid.Bidder.ID()], bid.Bids[0].Value)
				check.Equal(t, bids[i].Bids[0].Bundle.String(), bid.Bids[0].Bundle.String())
			}
			// originals are not modified
			for _, bid := range bids {
				check.Equal(t, tt.values[bid.Bidder.ID()], bid.Bids[0].Value)
			}
		})
	}
}

func TestApplyGenericBidAdjustmentFactors(t *testing.T) {
	world := uuid.New()
	def := GenericDefinition{ID: "licence", Supply: 2, World: world}
	bids := []GenericBid{
		{
			Bidder: NewGenericBidder("Bidder_A", world, nil),
			Bids: []QuantityBid{
				{Quantities: GenericBundle{{Definition: def, Quantity: 1}}, Value: 5},
				{Quantities: GenericBundle{{Definition: def, Quantity: 2}}, Value: 9},
			},
		},
	}

	adjusted := ApplyGenericBidAdjustmentFactors(bids, map[string]float64{"bidder_a": 1.1})

	assert.Equal(t, 1, len(adjusted))
	check.Equal(t, 5.5, adjusted[0].Bids[0].Value)
	check.Equal(t, 9.9, adjusted[0].Bids[1].Value)
	check.Equal(t, 2, adjusted[0].Bids[1].Quantities.QuantityOf("licence"))
	check.Equal(t, 5.0, bids[0].Bids[0].Value)
}
