package wdp

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/solver"
	"github.com/cloudx-io/ccgauction/testutil"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestXORScenarioA(t *testing.T) {
	s := testutil.ScenarioA()
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	allocation, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1", "bidder3"}, allocation.WinnerIDs())
	check.True(t, near(4, allocation.TotalValue()))
	check.False(t, allocation.Suboptimal())
	check.Equal(t, 1.0, wd.Scale())

	trade, ok := allocation.Get("bidder3")
	assert.True(t, ok)
	check.Equal(t, "{B,C}", trade.Bundle.String())
	check.Equal(t, 0, trade.AcceptedBid)

	// cached
	again, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.True(t, allocation == again)
}

func TestXORAllocationIsFeasible(t *testing.T) {
	s := testutil.NewXORScenario("overlap", "A", "B", "C").
		Bid("bidder1", 6, "A", "B").
		Bid("bidder1", 4, "A").
		Bid("bidder2", 5, "B", "C").
		Bid("bidder2", 2, "C").
		Bid("bidder3", 2, "B")
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	allocation, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	// bidder1{A}=4 + bidder2{B,C}=5 beats every other combination
	check.True(t, near(9, allocation.TotalValue()))
	check.Equal(t, []string{"bidder1", "bidder2"}, allocation.WinnerIDs())

	trade, _ := allocation.Get("bidder1")
	check.Equal(t, 1, trade.AcceptedBid)

	seen := map[string]bool{}
	for _, w := range allocation.Winners() {
		trade, _ := allocation.Get(w.ID())
		for _, g := range trade.Bundle {
			check.False(t, seen[g.ID])
			seen[g.ID] = true
		}
	}
}

func TestXORWithoutBidder(t *testing.T) {
	s := testutil.ScenarioA()
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	without, err := wd.WithoutBidder(s.Bidder("bidder1"))
	assert.NoError(t, err)
	allocation, err := without.CalculateAllocation()
	assert.NoError(t, err)
	check.True(t, near(3, allocation.TotalValue()))
	check.False(t, allocation.IsWinner("bidder1"))

	// original is untouched
	original, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.True(t, near(4, original.TotalValue()))
	check.Equal(t, 4, len(wd.Bids()))

	_, err = wd.WithoutBidder(nil)
	check.True(t, errors.Is(err, core.ErrNoBids))
}

func TestXORAdjustPayoffsOnCopy(t *testing.T) {
	s := testutil.ScenarioA()
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	cp, err := wd.CopyOf()
	assert.NoError(t, err)
	assert.NoError(t, cp.AdjustPayoffs(map[string]float64{"bidder1": 1.5, "bidder3": 1.5}))

	// {bidder1, bidder3} now scores 4-3=1 and {bidder1, bidder4} 3-1.5, so bidder2 alone wins with 3
	adjusted, err := cp.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder2"}, adjusted.WinnerIDs())
	check.True(t, near(3, adjusted.TotalValue()))

	original, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1", "bidder3"}, original.WinnerIDs())

	// a fresh copy carries no adjustment
	fresh, err := wd.CopyOf()
	assert.NoError(t, err)
	freshAllocation, err := fresh.CalculateAllocation()
	assert.NoError(t, err)
	check.True(t, near(4, freshAllocation.TotalValue()))
}

func TestXORAdjustPayoffsInvalidatesCache(t *testing.T) {
	s := testutil.ScenarioA()
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	before, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.True(t, near(4, before.TotalValue()))

	// unknown bidders are ignored
	assert.NoError(t, wd.AdjustPayoffs(map[string]float64{"bidder1": 1.5, "bidder3": 1.5, "nobody": 7}))
	after, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder2"}, after.WinnerIDs())

	check.Error(t, wd.AdjustPayoffs(map[string]float64{"bidder1": math.Inf(1)}))
}

func TestXORScaling(t *testing.T) {
	s := testutil.NewXORScenario("scaled", "A", "B", "C", "D").
		Bid("bidder1", 200, "A").
		Bid("bidder2", 300, "A", "B", "D").
		Bid("bidder3", 200, "B", "C").
		Bid("bidder4", 100, "C", "D")

	params := solver.DefaultParams()
	params.MaxCoefficient = 100
	wd, err := NewXOR(s.Bids, params)
	assert.NoError(t, err)
	check.True(t, near(0.3, wd.Scale()))

	allocation, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1", "bidder3"}, allocation.WinnerIDs())
	check.True(t, near(400, allocation.TotalValue()))
}

func TestComputeScale(t *testing.T) {
	check.Equal(t, 1.0, ComputeScale(10, 100))
	check.Equal(t, 1.0, ComputeScale(90, 100))
	check.True(t, near(0.5, ComputeScale(180, 100)))
	check.Equal(t, 1.0, ComputeScale(0, 100))
}

func TestNewXORUsageErrors(t *testing.T) {
	world := uuid.New()
	a := core.Good{ID: "A", World: world}
	b := core.Good{ID: "B", World: world}
	foreign := core.Good{ID: "X", World: uuid.New()}
	bidder := func(id string) core.Bidder { return core.NewBidder(id, world, nil) }

	tests := []struct {
		name string
		bids []core.XORBid
		want error
	}{
		{"no bid sets", nil, core.ErrNoBids},
		{"bid sets without bids", []core.XORBid{{Bidder: bidder("b1")}}, core.ErrNoBids},
		{"nil bidder", []core.XORBid{{Bidder: nil, Bids: []core.BundleBid{{Bundle: core.Bundle{a}, Value: 1}}}}, core.ErrNoBids},
		{
			"bidders from different worlds",
			[]core.XORBid{
				{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{a}, Value: 1}}},
				{Bidder: core.NewBidder("b2", uuid.New(), nil), Bids: []core.BundleBid{{Bundle: core.Bundle{a}, Value: 1}}},
			},
			core.ErrWorldMismatch,
		},
		{
			"good from another world",
			[]core.XORBid{{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{foreign}, Value: 1}}}},
			core.ErrWorldMismatch,
		},
		{
			"duplicate bidder",
			[]core.XORBid{
				{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{a}, Value: 1}}},
				{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{b}, Value: 1}}},
			},
			core.ErrDuplicateBidder,
		},
		{
			"negative value",
			[]core.XORBid{{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{a}, Value: -1}}}},
			core.ErrInvalidValue,
		},
		{
			"duplicate good in bundle",
			[]core.XORBid{{Bidder: bidder("b1"), Bids: []core.BundleBid{{Bundle: core.Bundle{a, a}, Value: 1}}}},
			core.ErrDuplicateGood,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXOR(tt.bids, solver.DefaultParams())
			check.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestXORZeroValueBids(t *testing.T) {
	s := testutil.NewXORScenario("zero", "A").
		Bid("bidder1", 0, "A").
		Bid("bidder2", 0, "A")
	wd, err := NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	allocation, err := wd.CalculateAllocation()
	assert.NoError(t, err)
	check.Equal(t, 0.0, allocation.TotalValue())
	check.True(t, len(allocation.Winners()) <= 1)
}
