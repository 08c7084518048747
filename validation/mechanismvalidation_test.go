package validation

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/mechanism"
	"github.com/cloudx-io/ccgauction/solver"
	"github.com/cloudx-io/ccgauction/testutil"
	"github.com/cloudx-io/ccgauction/wdp"
)

func scenarioA(t *testing.T) (*testutil.XORScenario, *wdp.XOR) {
	t.Helper()
	s := testutil.ScenarioA()
	wd, err := wdp.NewXOR(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)
	return s, wd
}

func TestValidateCCGResult(t *testing.T) {
	s, wd := scenarioA(t)
	result, err := mechanism.NewCCG(wd, mechanism.DefaultParams()).MechanismResult()
	assert.NoError(t, err)

	validation, err := ValidateMechanismResult(&MechanismValidationInput{
		Result:             result,
		XORBids:            s.Bids,
		WinnerDeterminator: wd,
		Tolerance:          1e-4,
	})
	assert.NoError(t, err)
	check.True(t, validation.AllocationFeasible)
	check.True(t, validation.BidsMatched)
	check.True(t, validation.PaymentsNonNegative)
	check.True(t, validation.PaymentsOnlyWinners)
	check.True(t, validation.IndividuallyRational)
	check.True(t, validation.CoreChecked)
	check.True(t, validation.CoreStable)
	check.True(t, validation.IsValid())
	check.NotEqual(t, 0, len(validation.ValidationDetails))
}

func TestValidateVCGResultIsNotCoreStable(t *testing.T) {
	s, wd := scenarioA(t)
	result, err := mechanism.NewVCG(wd, mechanism.DefaultParams()).MechanismResult()
	assert.NoError(t, err)

	withoutCore, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
	assert.NoError(t, err)
	check.False(t, withoutCore.CoreChecked)
	check.True(t, withoutCore.IsValid())

	withCore, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids, WinnerDeterminator: wd})
	assert.NoError(t, err)
	check.True(t, withCore.CoreChecked)
	check.False(t, withCore.CoreStable)
	check.False(t, withCore.IsValid())
}

func TestValidateTamperedResults(t *testing.T) {
	s, wd := scenarioA(t)
	allocation, err := wd.CalculateAllocation()
	assert.NoError(t, err)

	t.Run("payment above declared value", func(t *testing.T) {
		result := &core.MechanismResult{Allocation: allocation, Payment: core.NewPayment(map[string]float64{"bidder1": 5})}
		validation, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
		assert.NoError(t, err)
		check.False(t, validation.IndividuallyRational)
		check.False(t, validation.IsValid())
	})

	t.Run("non-winner pays", func(t *testing.T) {
		result := &core.MechanismResult{Allocation: allocation, Payment: core.NewPayment(map[string]float64{"bidder2": 1})}
		validation, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
		assert.NoError(t, err)
		check.False(t, validation.PaymentsOnlyWinners)
		check.False(t, validation.IsValid())
	})

	t.Run("negative payment", func(t *testing.T) {
		result := &core.MechanismResult{Allocation: allocation, Payment: core.NewPayment(map[string]float64{"bidder1": -1})}
		validation, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
		assert.NoError(t, err)
		check.False(t, validation.PaymentsNonNegative)
	})

	t.Run("overlapping bundles", func(t *testing.T) {
		overlapping := core.NewAllocation([]core.BidderAllocation{
			{Bidder: s.Bidder("bidder1"), Value: 2, Bundle: s.Bundle("A"), AcceptedBid: 0},
			{Bidder: s.Bidder("bidder2"), Value: 3, Bundle: s.Bundle("A", "B", "D"), AcceptedBid: 0},
		})
		result := &core.MechanismResult{Allocation: overlapping, Payment: core.NewPayment(nil)}
		validation, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
		assert.NoError(t, err)
		check.False(t, validation.AllocationFeasible)
		check.True(t, validation.BidsMatched)
	})

	t.Run("allocation not matching a bid", func(t *testing.T) {
		forged := core.NewAllocation([]core.BidderAllocation{
			{Bidder: s.Bidder("bidder1"), Value: 2, Bundle: s.Bundle("A", "B"), AcceptedBid: 0},
			{Bidder: s.Bidder("bidder4"), Value: 1, Bundle: s.Bundle("C", "D"), AcceptedBid: 3},
		})
		result := &core.MechanismResult{Allocation: forged, Payment: core.NewPayment(nil)}
		validation, err := ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids})
		assert.NoError(t, err)
		check.True(t, validation.AllocationFeasible)
		check.False(t, validation.BidsMatched)
	})
}

func TestValidateGenericResult(t *testing.T) {
	s := testutil.ScenarioC()
	wd, err := wdp.NewGeneric(s.Bids, solver.DefaultParams())
	assert.NoError(t, err)
	result, err := mechanism.NewCCG(wd, mechanism.DefaultParams()).MechanismResult()
	assert.NoError(t, err)

	validation, err := ValidateMechanismResult(&MechanismValidationInput{
		Result:             result,
		GenericBids:        s.Bids,
		WinnerDeterminator: wd,
		Tolerance:          1e-4,
	})
	assert.NoError(t, err)
	check.True(t, validation.IsValid())

	overSupplied := core.NewAllocation([]core.BidderAllocation{
		{Bidder: s.Bidders["bidder1"], Value: 9, Quantities: s.Quantities(map[string]int{"licence": 2}), AcceptedBid: 1},
		{Bidder: s.Bidders["bidder2"], Value: 5, Quantities: s.Quantities(map[string]int{"licence": 1}), AcceptedBid: 0},
	})
	tampered, err := ValidateMechanismResult(&MechanismValidationInput{
		Result:      &core.MechanismResult{Allocation: overSupplied, Payment: core.NewPayment(nil)},
		GenericBids: s.Bids,
	})
	assert.NoError(t, err)
	check.False(t, tampered.AllocationFeasible)
	check.True(t, tampered.BidsMatched)
}

func TestValidateMalformedInput(t *testing.T) {
	_, err := ValidateMechanismResult(nil)
	check.Error(t, err)

	s, wd := scenarioA(t)
	result, err := mechanism.NewVCG(wd, mechanism.DefaultParams()).MechanismResult()
	assert.NoError(t, err)

	_, err = ValidateMechanismResult(&MechanismValidationInput{Result: result})
	check.Error(t, err)

	_, err = ValidateMechanismResult(&MechanismValidationInput{Result: result, XORBids: s.Bids, GenericBids: testutil.ScenarioC().Bids})
	check.Error(t, err)
}
