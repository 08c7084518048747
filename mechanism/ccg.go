package mechanism

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/ccgauction/core"
	"github.com/cloudx-io/ccgauction/solver"
	"github.com/cloudx-io/ccgauction/wdp"
)

// BlockingCoalition is the outcome of one blocking coalition search.
type BlockingCoalition struct {
	// Allocation is the payoff-adjusted optimum among all bidders
	Allocation *core.Allocation

	// Traitors are the current winners that are also part of the coalition
	Traitors []string

	TraitorPayoffs  float64
	TraitorPayments float64

	// Zp is the coalition value net of what the traitors already earn
	Zp float64
}

// FindBlockingCoalition searches the coalition that gains most by displacing
// the current winners at the given payments. The base formulation is copied,
// never adjusted in place.
func FindBlockingCoalition(wd wdp.WinnerDeterminator, allocation *core.Allocation, payments map[string]float64) (*BlockingCoalition, error) {
	payoffs := make(map[string]float64, len(payments))
	for _, id := range allocation.WinnerIDs() {
		payoff, _ := decimal.NewFromFloat(allocation.TradeValue(id)).Sub(decimal.NewFromFloat(payments[id])).Float64()
		payoffs[id] = payoff
	}

	search, err := wd.CopyOf()
	if err != nil {
		return nil, fmt.Errorf("copy formulation: %w", err)
	}
	if err := search.AdjustPayoffs(payoffs); err != nil {
		return nil, fmt.Errorf("adjust payoffs: %w", err)
	}
	coalition, err := search.CalculateAllocation()
	if err != nil {
		return nil, fmt.Errorf("blocking coalition: %w", err)
	}

	traitorPayoffs := make(map[string]float64)
	traitorPayments := make(map[string]float64)
	traitors := make([]string, 0)
	for _, id := range allocation.WinnerIDs() {
		if !coalition.IsWinner(id) {
			continue
		}
		traitors = append(traitors, id)
		traitorPayoffs[id] = payoffs[id]
		traitorPayments[id] = payments[id]
	}

	result := &BlockingCoalition{
		Allocation:      coalition,
		Traitors:        traitors,
		TraitorPayoffs:  core.SumAmounts(traitorPayoffs),
		TraitorPayments: core.SumAmounts(traitorPayments),
	}
	result.Zp, _ = decimal.NewFromFloat(coalition.TotalValue()).Sub(decimal.NewFromFloat(result.TraitorPayoffs)).Float64()
	return result, nil
}

// CCG moves VCG payments to the nearest point of the minimal-revenue core by
// constraint generation: find a blocking coalition, require the winners
// outside it to pay enough to deter it, minimise revenue, then pick the
// minimal-revenue vector closest to VCG. Repeat until nothing blocks.
type CCG struct {
	wd         wdp.WinnerDeterminator
	vcg        *VCG
	params     Params
	iterations int
	result     *core.MechanismResult
}

// NewCCG wraps a winner determination formulation.
func NewCCG(wd wdp.WinnerDeterminator, params Params) *CCG {
	return &CCG{wd: wd, vcg: NewVCG(wd, params), params: params}
}

// Iterations returns how many blocking coalition searches the last run performed.
func (m *CCG) Iterations() int {
	return m.iterations
}

// ccgState is threaded through the constraint generation loop.
type ccgState struct {
	iteration     int
	prevZp        float64
	prevCoalition string
	hasPrevZp     bool
	payments      map[string]float64
}

// paymentProgram holds the accumulating minimal-revenue program.
type paymentProgram struct {
	l1    *solver.Program
	vars  map[string]solver.Var
	order []string
	scale float64

	// deterrence maps the payers of each deterrence constraint to its largest rhs
	deterrence map[string]float64
}

// MechanismResult runs constraint generation once and caches the result.
// The allocation is the efficient one computed by VCG; only payments change.
// Solver failures end the run and are returned unchanged.
func (m *CCG) MechanismResult() (*core.MechanismResult, error) {
	if m.result != nil {
		return m.result, nil
	}

	// INIT
	vcgResult, err := m.vcg.MechanismResult()
	if err != nil {
		return nil, err
	}
	allocation := vcgResult.Allocation
	if len(allocation.WinnerIDs()) == 0 {
		m.result = vcgResult
		return m.result, nil
	}

	program := m.newPaymentProgram(allocation)
	vcgPayments := vcgResult.Payment.Amounts()
	state := ccgState{payments: vcgResult.Payment.Amounts()}

	for {
		state.iteration++
		if m.params.MaxIterations > 0 && state.iteration > m.params.MaxIterations {
			return nil, fmt.Errorf("%w after %d iterations", ErrNoConvergence, m.params.MaxIterations)
		}

		// SEARCH_BLOCKING
		blocking, err := FindBlockingCoalition(m.wd, allocation, state.payments)
		if err != nil {
			return nil, fmt.Errorf("ccg iteration %d: %w", state.iteration, err)
		}
		totalPayments := core.SumAmounts(state.payments)

		m.params.Logger.Info().
			Int("iteration", state.iteration).
			Float64("z_p", blocking.Zp).
			Float64("total_payments", totalPayments).
			Int("coalition_size", len(blocking.Allocation.WinnerIDs())).
			Int("traitors", len(blocking.Traitors)).
			Msg("blocking coalition search")

		if blocking.Zp <= totalPayments+m.tolerance(allocation.TotalValue()) {
			break
		}

		if m.stagnates(state, blocking, program) {
			m.params.Logger.Warn().Int("iteration", state.iteration).Float64("z_p", blocking.Zp).Msg("z_p stagnated, accepting current payments")
			break
		}
		state.prevZp = blocking.Zp
		state.prevCoalition = coalitionKey(blocking.Allocation.WinnerIDs())
		state.hasPrevZp = true

		program.addDeterrence(state.iteration, blocking)

		// MINIMIZE_L1
		l1Sol, err := solver.Solve(program.l1, m.params.Solver)
		if err != nil {
			return nil, fmt.Errorf("ccg iteration %d minimal revenue: %w", state.iteration, err)
		}

		// MINIMIZE_L2
		l2 := program.nearestToVCG(l1Sol.Objective, m.params.PinTolerance, vcgPayments)
		l2Sol, err := solver.Solve(l2, m.params.Solver)
		if err != nil {
			return nil, fmt.Errorf("ccg iteration %d nearest core point: %w", state.iteration, err)
		}
		for _, id := range program.order {
			state.payments[id] = math.Max(l2Sol.Value(program.vars[id])/program.scale, 0)
		}
	}

	m.iterations = state.iteration
	m.result = &core.MechanismResult{Allocation: allocation, Payment: core.NewPayment(state.payments)}
	m.params.Logger.Info().
		Int("iterations", state.iteration).
		Float64("vcg_revenue", vcgResult.Payment.Total()).
		Float64("core_revenue", m.result.Payment.Total()).
		Msg("core payments computed")
	return m.result, nil
}

// stagnates reports whether z_p repeated and the deterrence constraint it
// would add is already known: either the coalition is the one found in the
// previous iteration, or an equal or stronger constraint is in the program.
// Distinct coalitions with equal z_p are not stagnation.
func (m *CCG) stagnates(state ccgState, blocking *BlockingCoalition, program *paymentProgram) bool {
	if !state.hasPrevZp || !m.stagnated(blocking.Zp, state.prevZp) {
		return false
	}
	if coalitionKey(blocking.Allocation.WinnerIDs()) == state.prevCoalition {
		return true
	}
	return program.hasDeterrence(blocking)
}

func (m *CCG) stagnated(zp, prev float64) bool {
	if m.params.StagnationTolerance <= 0 {
		return zp == prev
	}
	return math.Abs(zp-prev) <= m.params.StagnationTolerance
}

// tolerance is Epsilon relative to the magnitude of the values involved.
func (m *CCG) tolerance(magnitude float64) float64 {
	return relativeTolerance(m.params.Epsilon, magnitude)
}

func relativeTolerance(epsilon, magnitude float64) float64 {
	return epsilon * math.Max(1, math.Abs(magnitude))
}

func coalitionKey(ids []string) string {
	return strings.Join(ids, ",")
}

// newPaymentProgram creates one payment variable per winner in [0, trade value],
// minimising total payments. Every right-hand side of the payment programs is
// bounded by the efficient total value: coalition values are values of
// feasible allocations and payments never exceed trade values. The programs
// are therefore scaled so that this total stays within the coefficient
// ceiling, and at least as strongly as the formulation itself.
func (m *CCG) newPaymentProgram(allocation *core.Allocation) *paymentProgram {
	maxCoefficient := m.params.Solver.WithDefaults().MaxCoefficient
	p := &paymentProgram{
		l1:    solver.NewProgram("ccg-l1", solver.Minimize),
		vars:  make(map[string]solver.Var),
		order: allocation.WinnerIDs(),
		scale: math.Min(m.wd.Scale(), wdp.ComputeScale(allocation.TotalValue(), maxCoefficient)),

		deterrence: make(map[string]float64),
	}
	for _, id := range p.order {
		v := p.l1.AddContinuous("p_"+id, 0, p.scale*allocation.TradeValue(id))
		p.l1.AddObjectiveTerm(v, 1)
		p.vars[id] = v
	}
	return p
}

// addDeterrence requires the winners outside the coalition to pay at least
// z_p minus what the traitors pay today.
func (p *paymentProgram) addDeterrence(iteration int, blocking *BlockingCoalition) {
	payers := p.payers(blocking)
	terms := make([]solver.Term, 0, len(payers))
	for _, id := range payers {
		terms = append(terms, solver.Term{Var: p.vars[id], Coef: 1})
	}
	rhs := p.scale * (blocking.Zp - blocking.TraitorPayments)
	p.l1.AddConstraint(solver.Constraint{
		Name:  fmt.Sprintf("deter_%d", iteration),
		Terms: terms,
		Op:    solver.GreaterEq,
		RHS:   rhs,
	})

	key := coalitionKey(payers)
	if prev, ok := p.deterrence[key]; !ok || rhs > prev {
		p.deterrence[key] = rhs
	}
}

// hasDeterrence reports whether the constraint for this coalition is
// already implied by one in the program.
func (p *paymentProgram) hasDeterrence(blocking *BlockingCoalition) bool {
	prev, ok := p.deterrence[coalitionKey(p.payers(blocking))]
	return ok && p.scale*(blocking.Zp-blocking.TraitorPayments) <= prev
}

// payers are the winners outside the coalition, in winner order.
func (p *paymentProgram) payers(blocking *BlockingCoalition) []string {
	payers := make([]string, 0, len(p.order))
	for _, id := range p.order {
		if !blocking.Allocation.IsWinner(id) {
			payers = append(payers, id)
		}
	}
	return payers
}

// nearestToVCG pins total payments to the minimal revenue and minimises the
// squared distance to the VCG payments.
func (p *paymentProgram) nearestToVCG(minRevenue, pinTolerance float64, vcgPayments map[string]float64) *solver.Program {
	l2 := p.l1.CopyAs("ccg-l2")
	total := make([]solver.Term, 0, len(p.order))
	targets := make(map[solver.Var]float64, len(p.order))
	for _, id := range p.order {
		total = append(total, solver.Term{Var: p.vars[id], Coef: 1})
		targets[p.vars[id]] = p.scale * vcgPayments[id]
	}
	delta := pinTolerance * math.Max(p.scale, math.Abs(minRevenue))
	l2.AddConstraint(solver.Constraint{Name: "revenue_min", Terms: total, Op: solver.GreaterEq, RHS: minRevenue - delta})
	l2.AddConstraint(solver.Constraint{Name: "revenue_max", Terms: total, Op: solver.LessEq, RHS: minRevenue + delta})
	l2.SetSquaredDistanceObjective(targets)
	return l2
}
