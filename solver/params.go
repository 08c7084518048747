package solver

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrInfeasible       = errors.New("solver: program is infeasible")
	ErrUnbounded        = errors.New("solver: program is unbounded")
	ErrTimeLimit        = errors.New("solver: limit reached before proving optimality")
	ErrNumerical        = errors.New("solver: numerical failure")
	ErrCoefficientRange = errors.New("solver: coefficient exceeds representable range")
	ErrInvalidProgram   = errors.New("solver: invalid program")
)

// DefaultMaxCoefficient is the largest coefficient magnitude a program may carry.
const DefaultMaxCoefficient = 1e9

// Params configures a solve.
type Params struct {
	// MaxCoefficient is the ceiling M on representable coefficients
	MaxCoefficient float64

	// TimeLimit bounds wall-clock time per solve; 0 disables the limit.
	// A simplex call still running at the limit is abandoned, not stopped:
	// its goroutine keeps running until the call returns on its own.
	TimeLimit time.Duration

	// NodeLimit bounds branch-and-bound nodes per solve; 0 disables the limit
	NodeLimit int

	// AcceptSuboptimal returns the best solution found so far when a limit is hit,
	// flagged as suboptimal, instead of failing with ErrTimeLimit
	AcceptSuboptimal bool

	// IntegralityTolerance is how far a binary variable may sit from 0 or 1 and
	// still count as integral
	IntegralityTolerance float64

	// FeasibilityTolerance is used for constraint activity checks
	FeasibilityTolerance float64

	// LPTolerance is handed to the simplex method
	LPTolerance float64

	Logger zerolog.Logger
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		MaxCoefficient:       DefaultMaxCoefficient,
		IntegralityTolerance: 1e-6,
		FeasibilityTolerance: 1e-9,
		LPTolerance:          1e-10,
		Logger:               zerolog.Nop(),
	}
}

// WithDefaults fills unset fields from DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.MaxCoefficient <= 0 {
		p.MaxCoefficient = d.MaxCoefficient
	}
	if p.IntegralityTolerance <= 0 {
		p.IntegralityTolerance = d.IntegralityTolerance
	}
	if p.FeasibilityTolerance <= 0 {
		p.FeasibilityTolerance = d.FeasibilityTolerance
	}
	if p.LPTolerance <= 0 {
		p.LPTolerance = d.LPTolerance
	}
	return p
}

// limitReached reports whether a time or node limit has been exceeded.
func (p Params) limitReached(start time.Time, nodes int) bool {
	if p.TimeLimit > 0 && time.Since(start) > p.TimeLimit {
		return true
	}
	return p.NodeLimit > 0 && nodes >= p.NodeLimit
}

// deadline is when the time limit of a solve started at start expires; the
// zero time when there is no limit.
func (p Params) deadline(start time.Time) time.Time {
	if p.TimeLimit <= 0 {
		return time.Time{}
	}
	return start.Add(p.TimeLimit)
}
