// Package mechanism computes payments for a combinatorial auction on top of a
// winner determination formulation: VCG externality payments and
// core-constrained (CCG) payments.
package mechanism

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/cloudx-io/ccgauction/solver"
)

var (
	ErrNegativePayment = errors.New("mechanism: negative payment beyond tolerance")
	ErrNoConvergence   = errors.New("mechanism: core constraint generation did not converge")
)

// Params configures VCG and CCG.
type Params struct {
	// Epsilon is the slack allowed when testing core stability and when
	// clamping negative VCG noise to zero
	Epsilon float64

	// PinTolerance is how far total payments may drift from the minimal
	// revenue while selecting the payment vector nearest to VCG
	PinTolerance float64

	// StagnationTolerance is the largest change of z_p between consecutive
	// iterations still treated as stagnation; 0 means exact equality
	StagnationTolerance float64

	// MaxIterations bounds blocking coalition searches; 0 means unlimited
	MaxIterations int

	// Solver configures the payment programs solved by CCG
	Solver solver.Params

	Logger zerolog.Logger
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Epsilon:      1e-6,
		PinTolerance: 1e-6,
		Solver:       solver.DefaultParams(),
		Logger:       zerolog.Nop(),
	}
}
