package solver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// stdRow is one row of the shifted problem, y = x − lb ≥ 0.
type stdRow struct {
	cols  []int
	coefs []float64
	op    Op
	rhs   float64
}

// solveLP minimises cost·x over constraints and lb ≤ x ≤ ub, relaxing
// integrality. It rebuilds the program in standard form
//
//	minimize c·z  s.t.  A z = b, z ≥ 0
//
// with one slack column per row, so A always has full row rank. Columns are
// scaled by their bound width, rows by their largest structural coefficient
// (slack columns keep unit coefficients) and the cost
// vector by its largest entry, so the simplex tolerance applies to unit
// magnitudes whatever the size of the program's values. A zero deadline means
// no time limit.
func solveLP(constraints []Constraint, lb, ub, cost []float64, tol float64, deadline time.Time) ([]float64, float64, error) {
	n := len(lb)
	rows := make([]stdRow, 0, len(constraints)+n)

	for _, c := range constraints {
		dense := make(map[int]float64, len(c.Terms))
		for _, t := range c.Terms {
			dense[int(t.Var)] += t.Coef
		}
		row := stdRow{op: c.Op, rhs: c.RHS}
		for j := 0; j < n; j++ {
			a, ok := dense[j]
			if !ok || a == 0 {
				continue
			}
			row.cols = append(row.cols, j)
			row.coefs = append(row.coefs, a)
			row.rhs -= a * lb[j]
		}
		if len(row.cols) == 0 {
			// Nothing left to choose: the row either holds or the program is infeasible.
			slack := 1e-9 * math.Max(1, math.Abs(c.RHS))
			if (c.Op == LessEq && row.rhs < -slack) || (c.Op == GreaterEq && row.rhs > slack) {
				return nil, 0, fmt.Errorf("%w: constraint %s cannot hold (0 %s %g)", ErrInfeasible, c.Name, c.Op, row.rhs)
			}
			continue
		}
		rows = append(rows, row)
	}

	colScale := make([]float64, n)
	for j := 0; j < n; j++ {
		colScale[j] = 1
		if math.IsInf(ub[j], 1) {
			continue
		}
		width := ub[j] - lb[j]
		if width < -1e-9*math.Max(1, math.Abs(lb[j])) {
			return nil, 0, fmt.Errorf("%w: variable %d has empty domain", ErrInfeasible, j)
		}
		if width > 1 {
			colScale[j] = width
		}
		rows = append(rows, stdRow{cols: []int{j}, coefs: []float64{1}, op: LessEq, rhs: math.Max(width, 0)})
	}

	// Variables that appear in no row are set to their lower bound.
	col := make([]int, n)
	for j := range col {
		col[j] = -1
	}
	used := 0
	for _, r := range rows {
		for _, j := range r.cols {
			if col[j] < 0 {
				col[j] = used
				used++
			}
		}
	}
	for j := 0; j < n; j++ {
		if col[j] < 0 && cost[j] < 0 {
			return nil, 0, fmt.Errorf("%w: variable %d has no upper bound", ErrUnbounded, j)
		}
	}

	x := make([]float64, n)
	copy(x, lb)

	m := len(rows)
	if m == 0 {
		return x, floats.Dot(cost, x), nil
	}

	A := mat.NewDense(m, used+m, nil)
	b := make([]float64, m)
	c := make([]float64, used+m)
	costScale := 0.0
	for j := 0; j < n; j++ {
		if col[j] >= 0 {
			c[col[j]] = cost[j] * colScale[j]
			costScale = math.Max(costScale, math.Abs(c[col[j]]))
		}
	}
	if costScale > 0 {
		for k := range c {
			c[k] /= costScale
		}
	}
	for i, r := range rows {
		rowScale := 0.0
		for k, j := range r.cols {
			rowScale = math.Max(rowScale, math.Abs(r.coefs[k]*colScale[j]))
		}
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for k, j := range r.cols {
			A.Set(i, col[j], sign*r.coefs[k]*colScale[j]/rowScale)
		}
		// The slack column stays at unit magnitude; the slack value absorbs
		// the row scale.
		slack := 1.0
		if r.op == GreaterEq {
			slack = -1
		}
		A.Set(i, used+i, sign*slack)
		b[i] = sign * r.rhs / rowScale
	}

	_, optZ, err := simplex(c, A, b, tol, deadline)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeLimit):
			return nil, 0, err
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, fmt.Errorf("%w: %v", ErrInfeasible, err)
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, fmt.Errorf("%w: %v", ErrUnbounded, err)
		default:
			return nil, 0, fmt.Errorf("%w: simplex: %v", ErrNumerical, err)
		}
	}

	for j := 0; j < n; j++ {
		if col[j] >= 0 {
			x[j] = lb[j] + colScale[j]*optZ[col[j]]
		}
	}
	return x, floats.Dot(cost, x), nil
}

// simplex runs lp.Simplex, giving up at the deadline. The simplex method
// cannot be interrupted, so a call that overruns keeps running in the
// background until it returns; its result is discarded.
func simplex(c []float64, A mat.Matrix, b []float64, tol float64, deadline time.Time) (float64, []float64, error) {
	if deadline.IsZero() {
		return lp.Simplex(c, A, b, tol, nil)
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil, fmt.Errorf("%w before simplex", ErrTimeLimit)
	}

	type outcome struct {
		opt float64
		z   []float64
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		opt, z, err := lp.Simplex(c, A, b, tol, nil)
		done <- outcome{opt: opt, z: z, err: err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.opt, out.z, out.err
	case <-timer.C:
		return 0, nil, fmt.Errorf("%w during simplex", ErrTimeLimit)
	}
}
