package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pricetracker/models"
)

// PricePlaces is the number of decimals prices are stored with.
const PricePlaces = 2

// DefaultEpsilon matches the two-decimal precision prices are stored with.
var DefaultEpsilon = decimal.New(1, -PricePlaces)

type Action int

const (
	Skip Action = iota
	Persist
)

func (a Action) String() string {
	if a == Persist {
		return "persist"
	}
	return "skip"
}

// Decision is the outcome of comparing a candidate with the last sample.
// Delta and DeltaPercent are nil when there is no baseline; DeltaPercent is
// also nil when the baseline price is zero.
type Decision struct {
	Action       Action
	Price        decimal.Decimal
	Previous     *decimal.Decimal
	Delta        *decimal.Decimal
	DeltaPercent *decimal.Decimal
	Reason       string
}

const ReasonUnchanged = "unchanged"

// Detector decides whether a candidate price differs enough from the last
// stored sample to be recorded.
type Detector struct {
	epsilon decimal.Decimal
}

func NewDetector(epsilon decimal.Decimal) *Detector {
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	return &Detector{epsilon: epsilon}
}

func (d *Detector) Epsilon() decimal.Decimal {
	return d.epsilon
}

// Decide rounds candidate to stored precision before comparing, so the
// checks see the value that would be written.
func (d *Detector) Decide(candidate decimal.Decimal, last *models.TrackedPrice) (Decision, error) {
	candidate = candidate.Round(PricePlaces)
	if !candidate.IsPositive() {
		return Decision{}, fmt.Errorf("%w: candidate %s must be greater than zero", ErrInvalidPrice, candidate)
	}
	if last == nil {
		return Decision{Action: Persist, Price: candidate}, nil
	}

	previous := last.Price
	delta := candidate.Sub(previous)
	if delta.Abs().LessThan(d.epsilon) {
		return Decision{Action: Skip, Price: candidate, Previous: &previous, Reason: ReasonUnchanged}, nil
	}

	dec := Decision{Action: Persist, Price: candidate, Previous: &previous, Delta: &delta}
	if !previous.IsZero() {
		pct := delta.Div(previous).Mul(decimal.NewFromInt(100))
		dec.DeltaPercent = &pct
	}
	return dec, nil
}
