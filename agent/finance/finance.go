// Package finance computes fixed-rate amortized financing plans.
package finance

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// AnnualRate is the fixed yearly interest rate applied to every plan.
const AnnualRate = 0.10

var (
	DefaultTerms           = []int{3, 4, 5, 6}
	DefaultDownPaymentPcts = []float64{0.10, 0.20, 0.30}
)

// InvalidInputError names the offending input together with what would
// have been accepted.
type InvalidInputError struct {
	Field   string
	Value   any
	Allowed string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid financing input %s=%v (allowed: %s)", e.Field, e.Value, e.Allowed)
}

// Plan keeps full precision; use Rounded for presentation.
type Plan struct {
	VehiclePrice   float64 `json:"vehicle_price"`
	DownPayment    float64 `json:"down_payment"`
	DownPaymentPct float64 `json:"down_payment_pct"`
	TermYears      int     `json:"term_years"`
	Months         int     `json:"months"`
	AnnualRate     float64 `json:"annual_rate"`
	MonthlyRate    float64 `json:"monthly_rate"`
	FinancedAmount float64 `json:"financed_amount"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalPaid      float64 `json:"total_paid"`
	TotalInterest  float64 `json:"total_interest"`
}

// Rounded returns a copy with currency amounts rounded to cents.
func (p Plan) Rounded() Plan {
	p.VehiclePrice = roundCents(p.VehiclePrice)
	p.DownPayment = roundCents(p.DownPayment)
	p.DownPaymentPct = math.Round(p.DownPaymentPct*10000) / 10000
	p.FinancedAmount = roundCents(p.FinancedAmount)
	p.MonthlyPayment = roundCents(p.MonthlyPayment)
	p.TotalPaid = roundCents(p.TotalPaid)
	p.TotalInterest = roundCents(p.TotalInterest)
	return p
}

type Calculator struct {
	terms []int
	pcts  []float64
}

type Option func(*Calculator)

// WithTerms overrides the allowed term set (years).
func WithTerms(terms ...int) Option {
	return func(c *Calculator) {
		if len(terms) > 0 {
			c.terms = slices.Clone(terms)
			slices.Sort(c.terms)
		}
	}
}

// WithDownPaymentPcts overrides the standard down-payment fractions used by
// the options grid.
func WithDownPaymentPcts(pcts ...float64) Option {
	return func(c *Calculator) {
		if len(pcts) > 0 {
			c.pcts = slices.Clone(pcts)
			slices.Sort(c.pcts)
		}
	}
}

func New(opts ...Option) *Calculator {
	c := &Calculator{
		terms: slices.Clone(DefaultTerms),
		pcts:  slices.Clone(DefaultDownPaymentPcts),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Calculator) Terms() []int {
	return slices.Clone(c.terms)
}

func (c *Calculator) DownPaymentPcts() []float64 {
	return slices.Clone(c.pcts)
}

// ComputePlan amortizes price-downPayment over termYears*12 equal monthly
// installments at AnnualRate.
func (c *Calculator) ComputePlan(price, downPayment float64, termYears int) (Plan, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return Plan{}, &InvalidInputError{Field: "price", Value: price, Allowed: "> 0"}
	}
	if !(downPayment >= 0 && downPayment < price) {
		return Plan{}, &InvalidInputError{
			Field:   "down_payment",
			Value:   downPayment,
			Allowed: fmt.Sprintf("[0, %.2f)", price),
		}
	}
	if !slices.Contains(c.terms, termYears) {
		return Plan{}, &InvalidInputError{Field: "term_years", Value: termYears, Allowed: c.termsString()}
	}

	n := termYears * 12
	r := AnnualRate / 12
	financed := price - downPayment

	var monthly float64
	if financed > 0 {
		factor := math.Pow(1+r, float64(n))
		monthly = financed * r * factor / (factor - 1)
	}
	total := monthly * float64(n)

	return Plan{
		VehiclePrice:   price,
		DownPayment:    downPayment,
		DownPaymentPct: downPayment / price,
		TermYears:      termYears,
		Months:         n,
		AnnualRate:     AnnualRate,
		MonthlyRate:    r,
		FinancedAmount: financed,
		MonthlyPayment: monthly,
		TotalPaid:      total,
		TotalInterest:  total - financed,
	}, nil
}

// ComputePlanPct is ComputePlan with the down payment given as a fraction
// of price in [0, 1).
func (c *Calculator) ComputePlanPct(price, pct float64, termYears int) (Plan, error) {
	if !(pct >= 0 && pct < 1) {
		return Plan{}, &InvalidInputError{Field: "down_payment_pct", Value: pct, Allowed: "[0, 1)"}
	}
	return c.ComputePlan(price, price*pct, termYears)
}

// ComputeOptionsGrid enumerates every standard down-payment fraction against
// every allowed term, fraction-major.
func (c *Calculator) ComputeOptionsGrid(price float64) ([]Plan, error) {
	plans := make([]Plan, 0, len(c.pcts)*len(c.terms))
	for _, pct := range c.pcts {
		for _, term := range c.terms {
			p, err := c.ComputePlanPct(price, pct, term)
			if err != nil {
				return nil, err
			}
			plans = append(plans, p)
		}
	}
	return plans, nil
}

// PlansForTerms computes one plan per allowed term for a fixed down payment.
func (c *Calculator) PlansForTerms(price, downPayment float64) ([]Plan, error) {
	plans := make([]Plan, 0, len(c.terms))
	for _, term := range c.terms {
		p, err := c.ComputePlan(price, downPayment, term)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// PlansForPcts computes one plan per standard down-payment fraction for a
// fixed term.
func (c *Calculator) PlansForPcts(price float64, termYears int) ([]Plan, error) {
	plans := make([]Plan, 0, len(c.pcts))
	for _, pct := range c.pcts {
		p, err := c.ComputePlanPct(price, pct, termYears)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (c *Calculator) termsString() string {
	parts := make([]string, 0, len(c.terms))
	for _, t := range c.terms {
		parts = append(parts, strconv.Itoa(t))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
