package solver

import (
	"fmt"
	"math"
)

// VarType distinguishes binary decision variables from continuous ones.
type VarType int

const (
	Continuous VarType = iota
	Binary
)

// Sense is the optimisation direction of a program.
type Sense int

const (
	Maximize Sense = iota
	Minimize
)

// Op is the relation of a linear constraint.
type Op int

const (
	LessEq Op = iota
	GreaterEq
)

func (o Op) String() string {
	if o == GreaterEq {
		return ">="
	}
	return "<="
}

// Var is a handle to a program variable.
type Var int

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Constraint is Σ terms Op RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

type variable struct {
	name string
	typ  VarType
	lb   float64
	ub   float64
}

// Program is a mixed binary linear program, or a continuous program with a
// squared-distance objective. A Program is owned by a single writer; use Copy
// to hand an independent program to someone else.
type Program struct {
	name        string
	sense       Sense
	vars        []variable
	constraints []Constraint
	objective   map[Var]float64
	targets     map[Var]float64
}

// NewProgram creates an empty program with a linear objective.
func NewProgram(name string, sense Sense) *Program {
	return &Program{
		name:      name,
		sense:     sense,
		objective: make(map[Var]float64),
	}
}

func (p *Program) Name() string        { return p.name }
func (p *Program) Sense() Sense        { return p.sense }
func (p *Program) NumVars() int        { return len(p.vars) }
func (p *Program) NumConstraints() int { return len(p.constraints) }

// VarName returns the name given to v.
func (p *Program) VarName(v Var) string {
	return p.vars[v].name
}

// AddBinary adds a {0,1} variable.
func (p *Program) AddBinary(name string) Var {
	p.vars = append(p.vars, variable{name: name, typ: Binary, lb: 0, ub: 1})
	return Var(len(p.vars) - 1)
}

// AddContinuous adds a continuous variable in [lb, ub]. ub may be +Inf.
func (p *Program) AddContinuous(name string, lb, ub float64) Var {
	p.vars = append(p.vars, variable{name: name, typ: Continuous, lb: lb, ub: ub})
	return Var(len(p.vars) - 1)
}

// AddConstraint appends a linear constraint.
func (p *Program) AddConstraint(c Constraint) {
	terms := make([]Term, len(c.Terms))
	copy(terms, c.Terms)
	c.Terms = terms
	p.constraints = append(p.constraints, c)
}

// AddObjectiveTerm adds coef·v to the linear objective.
func (p *Program) AddObjectiveTerm(v Var, coef float64) {
	p.objective[v] += coef
}

// ObjectiveCoef returns the linear objective coefficient of v.
func (p *Program) ObjectiveCoef(v Var) float64 {
	return p.objective[v]
}

// SetSquaredDistanceObjective replaces the objective with
// minimize Σ (v − targets[v])². Every variable must have a target.
func (p *Program) SetSquaredDistanceObjective(targets map[Var]float64) {
	p.sense = Minimize
	p.objective = make(map[Var]float64)
	p.targets = make(map[Var]float64, len(targets))
	for v, t := range targets {
		p.targets[v] = t
	}
}

// CopyAs returns a deep copy of p under a new name.
func (p *Program) CopyAs(name string) *Program {
	cp := p.Copy()
	cp.name = name
	return cp
}

// Copy returns a deep copy sharing no state with p.
func (p *Program) Copy() *Program {
	cp := &Program{
		name:        p.name,
		sense:       p.sense,
		vars:        make([]variable, len(p.vars)),
		constraints: make([]Constraint, 0, len(p.constraints)),
		objective:   make(map[Var]float64, len(p.objective)),
	}
	copy(cp.vars, p.vars)
	for _, c := range p.constraints {
		cp.AddConstraint(c)
	}
	for v, coef := range p.objective {
		cp.objective[v] = coef
	}
	if p.targets != nil {
		cp.targets = make(map[Var]float64, len(p.targets))
		for v, t := range p.targets {
			cp.targets[v] = t
		}
	}
	return cp
}

func (p *Program) validate(maxCoef float64) error {
	checkCoef := func(where string, coef float64) error {
		if math.IsNaN(coef) || math.IsInf(coef, 0) {
			return fmt.Errorf("%w: %s has non-finite coefficient", ErrInvalidProgram, where)
		}
		if math.Abs(coef) > maxCoef {
			return fmt.Errorf("%w: %s has coefficient %g, ceiling is %g", ErrCoefficientRange, where, coef, maxCoef)
		}
		return nil
	}

	for i, v := range p.vars {
		if math.IsInf(v.lb, 0) || math.IsNaN(v.lb) || math.IsNaN(v.ub) {
			return fmt.Errorf("%w: variable %s needs a finite lower bound", ErrInvalidProgram, v.name)
		}
		if v.ub < v.lb {
			return fmt.Errorf("%w: variable %s has bounds [%g, %g]", ErrInfeasible, v.name, v.lb, v.ub)
		}
		if p.targets != nil {
			if v.typ == Binary {
				return fmt.Errorf("%w: squared-distance objective over binary variable %s", ErrInvalidProgram, v.name)
			}
			t, ok := p.targets[Var(i)]
			if !ok {
				return fmt.Errorf("%w: variable %s has no target in squared-distance objective", ErrInvalidProgram, v.name)
			}
			if err := checkCoef("objective target of "+v.name, t); err != nil {
				return err
			}
		}
	}
	for _, c := range p.constraints {
		for _, t := range c.Terms {
			if int(t.Var) < 0 || int(t.Var) >= len(p.vars) {
				return fmt.Errorf("%w: constraint %s references unknown variable %d", ErrInvalidProgram, c.Name, t.Var)
			}
			if err := checkCoef("constraint "+c.Name, t.Coef); err != nil {
				return err
			}
		}
		if err := checkCoef("right-hand side of "+c.Name, c.RHS); err != nil {
			return err
		}
	}
	for v, coef := range p.objective {
		if int(v) < 0 || int(v) >= len(p.vars) {
			return fmt.Errorf("%w: objective references unknown variable %d", ErrInvalidProgram, v)
		}
		if err := checkCoef("objective term of "+p.vars[v].name, coef); err != nil {
			return err
		}
	}
	return nil
}

// minimizationCosts returns the linear objective as a dense minimisation vector.
func (p *Program) minimizationCosts() []float64 {
	cost := make([]float64, len(p.vars))
	for v, coef := range p.objective {
		if p.sense == Maximize {
			cost[v] = -coef
		} else {
			cost[v] = coef
		}
	}
	return cost
}

// objectiveValue evaluates the program's objective at x in its own sense.
func (p *Program) objectiveValue(x []float64) float64 {
	if p.targets != nil {
		total := 0.0
		for v, t := range p.targets {
			d := x[v] - t
			total += d * d
		}
		return total
	}
	total := 0.0
	for v, coef := range p.objective {
		total += coef * x[v]
	}
	return total
}

func (p *Program) bounds() (lb, ub []float64) {
	lb = make([]float64, len(p.vars))
	ub = make([]float64, len(p.vars))
	for i, v := range p.vars {
		lb[i] = v.lb
		ub[i] = v.ub
	}
	return lb, ub
}
