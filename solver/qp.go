package solver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// halfspace is a·x ≥ b.
type halfspace struct {
	a []float64
	b float64
}

// solveQP minimises Σ (x − t)² subject to the program's linear constraints
// and bounds with a primal active-set method. The starting point is a
// feasible vertex found by the simplex method; each step projects the
// gradient onto the null space of the working set.
func solveQP(p *Program, params Params, start time.Time) (*Solution, error) {
	n := len(p.vars)
	lb, ub := p.bounds()

	x, _, err := solveLP(p.constraints, lb, ub, make([]float64, n), params.LPTolerance, params.deadline(start))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &Solution{Values: x}, nil
	}

	// The iteration runs on x/s, with s the largest target, bound or
	// right-hand side magnitude, so its tolerances act on unit values.
	target := make([]float64, n)
	for v, t := range p.targets {
		target[v] = t
	}
	cons := halfspaces(p, lb, ub)
	s := math.Max(1, floats.Norm(target, math.Inf(1)))
	for _, h := range cons {
		s = math.Max(s, math.Abs(h.b))
	}
	floats.Scale(1/s, x)
	floats.Scale(1/s, target)
	for i := range cons {
		cons[i].b /= s
	}
	solution := func(iter int, suboptimal bool) *Solution {
		values := cloneFloats(x)
		floats.Scale(s, values)
		return &Solution{Objective: p.objectiveValue(values), Values: values, Suboptimal: suboptimal, Nodes: iter}
	}
	tol := math.Max(params.FeasibilityTolerance, 1e-9)

	// Seed the working set with a linearly independent subset of the active constraints.
	working := make([]int, 0, n)
	for i, h := range cons {
		if len(working) == n {
			break
		}
		if math.Abs(floats.Dot(h.a, x)-h.b) > tol*math.Max(1, math.Abs(h.b)) {
			continue
		}
		independent, err := isIndependent(cons, working, h.a)
		if err != nil {
			return nil, err
		}
		if independent {
			working = append(working, i)
		}
	}

	maxIter := 50 * (n + len(cons) + 1)
	g := make([]float64, n)
	d := make([]float64, n)
	for iter := 1; iter <= maxIter; iter++ {
		if params.limitReached(start, 0) {
			if params.AcceptSuboptimal {
				return solution(iter, true), nil
			}
			return nil, fmt.Errorf("%w after %d active-set iterations", ErrTimeLimit, iter)
		}

		floats.SubTo(g, x, target)

		// d = −g + A_Wᵀλ with (A_W A_Wᵀ) λ = A_W g keeps A_W d = 0.
		lambda, err := projectOnto(cons, working, g)
		if err != nil {
			return nil, err
		}
		for j := range d {
			d[j] = -g[j]
		}
		for k, i := range working {
			floats.AddScaled(d, lambda[k], cons[i].a)
		}

		if floats.Norm(d, math.Inf(1)) <= 1e-10*math.Max(1, floats.Norm(x, math.Inf(1))) {
			drop, minLambda := -1, -tol
			for k := range working {
				if lambda[k] < minLambda {
					minLambda = lambda[k]
					drop = k
				}
			}
			if drop < 0 {
				return solution(iter, false), nil
			}
			working = append(working[:drop], working[drop+1:]...)
			continue
		}

		alpha, blocking := 1.0, -1
		inWorking := make(map[int]bool, len(working))
		for _, i := range working {
			inWorking[i] = true
		}
		for i, h := range cons {
			if inWorking[i] {
				continue
			}
			ad := floats.Dot(h.a, d)
			if ad >= -1e-12 {
				continue
			}
			slack := math.Max(floats.Dot(h.a, x)-h.b, 0)
			if step := slack / -ad; step < alpha {
				alpha = step
				blocking = i
			}
		}
		floats.AddScaled(x, alpha, d)
		if blocking >= 0 {
			working = append(working, blocking)
		}
	}

	return nil, fmt.Errorf("%w: active set did not converge in %d iterations", ErrNumerical, maxIter)
}

// halfspaces rewrites constraints and bounds as a·x ≥ b.
func halfspaces(p *Program, lb, ub []float64) []halfspace {
	n := len(p.vars)
	cons := make([]halfspace, 0, len(p.constraints)+2*n)
	for _, c := range p.constraints {
		a := make([]float64, n)
		for _, t := range c.Terms {
			a[t.Var] += t.Coef
		}
		b := c.RHS
		if c.Op == LessEq {
			floats.Scale(-1, a)
			b = -b
		}
		if floats.Norm(a, 1) == 0 {
			continue
		}
		cons = append(cons, halfspace{a: a, b: b})
	}
	for j := 0; j < n; j++ {
		lower := make([]float64, n)
		lower[j] = 1
		cons = append(cons, halfspace{a: lower, b: lb[j]})
		if !math.IsInf(ub[j], 1) {
			upper := make([]float64, n)
			upper[j] = -1
			cons = append(cons, halfspace{a: upper, b: -ub[j]})
		}
	}
	return cons
}

// projectOnto solves (A_W A_Wᵀ) λ = A_W v for the rows of the working set.
func projectOnto(cons []halfspace, working []int, v []float64) ([]float64, error) {
	k := len(working)
	if k == 0 {
		return nil, nil
	}
	gram := mat.NewDense(k, k, nil)
	rhs := mat.NewVecDense(k, nil)
	for r, i := range working {
		for c, j := range working {
			gram.Set(r, c, floats.Dot(cons[i].a, cons[j].a))
		}
		rhs.SetVec(r, floats.Dot(cons[i].a, v))
	}
	var lambda mat.VecDense
	if err := lambda.SolveVec(gram, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: working set solve: %v", ErrNumerical, err)
		}
	}
	out := make([]float64, k)
	for r := range out {
		out[r] = lambda.AtVec(r)
	}
	return out, nil
}

// isIndependent reports whether a lies outside the span of the working set rows.
func isIndependent(cons []halfspace, working []int, a []float64) (bool, error) {
	norm := floats.Norm(a, 2)
	if norm == 0 {
		return false, nil
	}
	if len(working) == 0 {
		return true, nil
	}
	lambda, err := projectOnto(cons, working, a)
	if err != nil {
		return false, err
	}
	residual := cloneFloats(a)
	for k, i := range working {
		floats.AddScaled(residual, -lambda[k], cons[i].a)
	}
	return floats.Norm(residual, 2) > 1e-9*norm, nil
}
