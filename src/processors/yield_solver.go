package processors

import (
	"fmt"
	"math"
	"time"

	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

// Cashflow is a dated signed amount. The first one is the purchase, negative.
type Cashflow struct {
	Date   time.Time
	Amount float64
}

// ---------------------------------------------------------------------------
// Brent solver (unexported)
// ---------------------------------------------------------------------------

const (
	xirrLowerBound = -0.9999
	xirrUpperBound = 10.0
	xirrTolerance  = 1e-12
	xirrMaxIter    = 100
)

type yieldSolverImpl struct{}

func NewYieldSolver() YieldSolver {
	return &yieldSolverImpl{}
}

// XNPV discounts each cashflow at rate on actual/365 from the first date.
func XNPV(rate float64, cashflows []Cashflow) float64 {
	if len(cashflows) == 0 {
		return 0
	}
	d0 := cashflows[0].Date
	var npv float64
	for _, cf := range cashflows {
		t := utils.YearFraction(d0, cf.Date)
		npv += cf.Amount / math.Pow(1+rate, t)
	}
	return npv
}

// XIRR finds r in [-0.9999, 10] with XNPV(r) = 0 using Brent's method.
// Cashflows whose NPV does not change sign across the bracket have no
// solution and yield ErrNoYieldSolution.
func (s *yieldSolverImpl) XIRR(cashflows []Cashflow) (float64, error) {
	if len(cashflows) < 2 {
		return 0, fmt.Errorf("%w: need at least two cashflows, got %d", models.ErrNoYieldSolution, len(cashflows))
	}
	f := func(r float64) float64 { return finite(XNPV(r, cashflows)) }

	a, b := xirrLowerBound, xirrUpperBound
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if math.Signbit(fa) == math.Signbit(fb) {
		return 0, fmt.Errorf("%w: NPV has no sign change in [%g, %g]", models.ErrNoYieldSolution, a, b)
	}

	// c is the previous iterate, d the step before that.
	c, fc := a, fa
	d := b - a
	e := d
	for iter := 0; iter < xirrMaxIter; iter++ {
		if math.Signbit(fb) == math.Signbit(fc) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol := 2*math.SmallestNonzeroFloat64*math.Abs(b) + 0.5*xirrTolerance
		m := 0.5 * (c - b)
		if math.Abs(m) <= tol || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			// inverse quadratic interpolation, or secant when a == c
			var p, q float64
			sv := fb / fa
			if a == c {
				p = 2 * m * sv
				q = 1 - sv
			} else {
				qv := fa / fc
				rv := fb / fc
				p = sv * (2*m*qv*(qv-rv) - (b-a)*(rv-1))
				q = (qv - 1) * (rv - 1) * (sv - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = m
			}
		} else {
			d = m
			e = m
		}

		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else if m > 0 {
			b += tol
		} else {
			b -= tol
		}
		fb = f(b)
	}
	return b, nil
}

// finite clamps overflowed NPVs so the bracket comparison stays meaningful.
func finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// YieldPercent runs XIRR and converts to a percentage rounded to 2 decimals.
func YieldPercent(solver YieldSolver, cashflows []Cashflow) (float64, error) {
	r, err := solver.XIRR(cashflows)
	if err != nil {
		return 0, err
	}
	return utils.RoundFloat(r*100, 2), nil
}
