package solver

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Solution is the result of Solve.
type Solution struct {
	// Objective is the objective value in the program's own sense
	Objective float64

	// Values holds one entry per variable, indexed by Var
	Values []float64

	// Suboptimal is set when a limit was hit and AcceptSuboptimal allowed
	// returning the best solution found so far
	Suboptimal bool

	// Nodes counts LP relaxations (or active-set iterations) performed
	Nodes int
}

// Value returns the value of v in the solution.
func (s *Solution) Value(v Var) float64 {
	return s.Values[v]
}

// Solve optimises the program. Binary variables are handled by branch and
// bound over LP relaxations; squared-distance objectives by an active-set
// method. The program itself is not modified.
func Solve(p *Program, params Params) (*Solution, error) {
	params = params.WithDefaults()
	if err := p.validate(params.MaxCoefficient); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		sol *Solution
		err error
	)
	if p.targets != nil {
		sol, err = solveQP(p, params, start)
	} else {
		sol, err = branchAndBound(p, params, start)
	}
	if err != nil {
		params.Logger.Debug().Err(err).Str("program", p.name).Dur("elapsed", time.Since(start)).Msg("solve failed")
		return nil, fmt.Errorf("solve %s: %w", p.name, err)
	}

	params.Logger.Debug().
		Str("program", p.name).
		Int("vars", len(p.vars)).
		Int("constraints", len(p.constraints)).
		Int("nodes", sol.Nodes).
		Bool("suboptimal", sol.Suboptimal).
		Float64("objective", sol.Objective).
		Dur("elapsed", time.Since(start)).
		Msg("solve complete")
	return sol, nil
}

type bbNode struct {
	lb []float64
	ub []float64
}

// branchAndBound runs depth-first branch and bound, exploring the x=1 branch first.
func branchAndBound(p *Program, params Params, start time.Time) (*Solution, error) {
	cost := p.minimizationCosts()
	lb, ub := p.bounds()

	binaries := make([]int, 0)
	for i, v := range p.vars {
		if v.typ == Binary {
			binaries = append(binaries, i)
		}
	}

	stack := []bbNode{{lb: lb, ub: ub}}
	var best []float64
	bestObj := math.Inf(1)
	nodes := 0

	deadline := params.deadline(start)
	stopped := func() (*Solution, error) {
		if best != nil && params.AcceptSuboptimal {
			params.Logger.Warn().Str("program", p.name).Int("nodes", nodes).Msg("limit reached, returning suboptimal solution")
			return &Solution{Objective: p.objectiveValue(best), Values: best, Suboptimal: true, Nodes: nodes}, nil
		}
		return nil, fmt.Errorf("%w after %d nodes", ErrTimeLimit, nodes)
	}

	for len(stack) > 0 {
		if params.limitReached(start, nodes) {
			return stopped()
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, obj, err := solveLP(p.constraints, nd.lb, nd.ub, cost, params.LPTolerance, deadline)
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if errors.Is(err, ErrTimeLimit) {
			return stopped()
		}
		if err != nil {
			return nil, err
		}
		if obj >= bestObj-1e-9*math.Max(1, math.Abs(bestObj)) {
			continue
		}

		branchVar := mostFractional(x, binaries, params.IntegralityTolerance)
		if branchVar < 0 {
			for _, j := range binaries {
				x[j] = math.Round(x[j])
			}
			best = x
			bestObj = obj
			continue
		}

		down := bbNode{lb: cloneFloats(nd.lb), ub: cloneFloats(nd.ub)}
		down.ub[branchVar] = 0
		up := bbNode{lb: cloneFloats(nd.lb), ub: cloneFloats(nd.ub)}
		up.lb[branchVar] = 1
		stack = append(stack, down, up)
	}

	if best == nil {
		return nil, ErrInfeasible
	}
	return &Solution{Objective: p.objectiveValue(best), Values: best, Nodes: nodes}, nil
}

// mostFractional returns the binary variable farthest from integrality, or -1.
func mostFractional(x []float64, binaries []int, tol float64) int {
	branchVar := -1
	worst := tol
	for _, j := range binaries {
		frac := math.Abs(x[j] - math.Round(x[j]))
		if frac > worst {
			worst = frac
			branchVar = j
		}
	}
	return branchVar
}

func cloneFloats(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
