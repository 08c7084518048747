package mechanism

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/ccgauction/solver"
	"github.com/cloudx-io/ccgauction/testutil"
	"github.com/cloudx-io/ccgauction/wdp"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func xorFormulation(t *testing.T, s *testutil.XORScenario) *wdp.XOR {
	t.Helper()
	wd, err := wdp.NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)
	return wd
}

func TestVCGScenarioA(t *testing.T) {
	wd := xorFormulation(t, testutil.ScenarioA())
	vcg := NewVCG(wd, DefaultParams())

	result, err := vcg.MechanismResult()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1", "bidder3"}, result.Allocation.WinnerIDs())
	check.True(t, near(1, result.Payment.Of("bidder1")))
	check.True(t, near(1, result.Payment.Of("bidder3")))
	check.Equal(t, 0.0, result.Payment.Of("bidder2"))
	check.Equal(t, 0.0, result.Payment.Of("bidder4"))
	check.True(t, near(2, result.Payment.Total()))

	again, err := vcg.MechanismResult()
	assert.NoError(t, err)
	check.True(t, result == again)
}

func TestVCGExternalityIdentity(t *testing.T) {
	s := testutil.ScenarioA()
	wd := xorFormulation(t, s)

	result, err := NewVCG(wd, DefaultParams()).MechanismResult()
	assert.NoError(t, err)

	for _, winner := range result.Allocation.Winners() {
		without, err := wd.WithoutBidder(winner)
		assert.NoError(t, err)
		allocation, err := without.CalculateAllocation()
		assert.NoError(t, err)

		othersWithW := result.Allocation.TotalValue() - result.Allocation.TradeValue(winner.ID())
		check.True(t, near(allocation.TotalValue()-othersWithW, result.Payment.Of(winner.ID())))
		check.True(t, result.Payment.Of(winner.ID()) <= result.Allocation.TradeValue(winner.ID())+1e-9)
	}
}

func TestVCGScenarioB(t *testing.T) {
	result, err := NewVCG(xorFormulation(t, testutil.ScenarioB()), DefaultParams()).MechanismResult()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1", "bidder2"}, result.Allocation.WinnerIDs())
	check.True(t, near(0, result.Payment.Of("bidder1")))
	check.True(t, near(0, result.Payment.Of("bidder2")))
}

func TestVCGGenericScenarioC(t *testing.T) {
	s := testutil.ScenarioC()
	wd, err := wdp.NewGeneric(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)

	result, err := NewVCG(wd, DefaultParams()).MechanismResult()
	assert.NoError(t, err)
	check.True(t, near(10, result.Allocation.TotalValue()))
	check.True(t, near(4, result.Payment.Of("bidder1")))
	check.True(t, near(4, result.Payment.Of("bidder2")))
}

func TestVCGSingleGood(t *testing.T) {
	s := testutil.NewXORScenario("second-price", "A").
		Bid("bidder1", 5, "A").
		Bid("bidder2", 3, "A").
		Bid("bidder3", 1, "A")

	result, err := NewVCG(xorFormulation(t, s), DefaultParams()).MechanismResult()
	assert.NoError(t, err)
	check.Equal(t, []string{"bidder1"}, result.Allocation.WinnerIDs())
	check.True(t, near(3, result.Payment.Of("bidder1")))
}

// Zero payments at values near 1e11 must not turn into ErrNegativePayment
// through float rounding.
func TestVCGLargeValues(t *testing.T) {
	s := testutil.NewXORScenario("large", "A", "B", "C", "D").
		Bid("b0", 4.04e10, "B", "C", "D").
		Bid("b0", 1.16e10, "D").
		Bid("b1", 2.96e10, "A", "C").
		Bid("b1", 4.85e10, "B", "C").
		Bid("b2", 9.69e10, "A").
		Bid("b2", 1.063e11, "A", "B", "D").
		Bid("b3", 5.04e10, "C").
		Bid("b3", 8.31e10, "B", "C")
	wd := xorFormulation(t, s)

	result, err := NewVCG(wd, DefaultParams()).MechanismResult()
	assert.NoError(t, err)
	check.Equal(t, []string{"b0", "b2", "b3"}, result.Allocation.WinnerIDs())
	check.Equal(t, 1.916e11, result.Allocation.TotalValue())

	tolerance := 1e-6 * result.Allocation.TotalValue()
	for _, id := range result.Allocation.WinnerIDs() {
		check.True(t, result.Payment.Of(id) >= 0)
	}
	check.True(t, result.Payment.Of("b0") < tolerance)
	check.True(t, result.Payment.Of("b2") < tolerance)
	check.True(t, math.Abs(result.Payment.Of("b3")-4.85e10) < tolerance)
}
