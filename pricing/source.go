package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"pricetracker/models"
)

// Source produces a candidate price for a product.
type Source interface {
	Sample(ctx context.Context, product models.Product) (decimal.Decimal, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, product models.Product) (decimal.Decimal, error)

func (f SourceFunc) Sample(ctx context.Context, product models.Product) (decimal.Decimal, error) {
	return f(ctx, product)
}

// Bounds configures the simulated fluctuation. Variation is the symmetric
// random swing as a fraction (0.03 is ±3%). Floor and Ceil are multipliers
// of the base price; a zero Ceil leaves the upper side unbounded.
type Bounds struct {
	Variation float64 `yaml:"variation"`
	Floor     float64 `yaml:"floor"`
	Ceil      float64 `yaml:"ceil"`
}

var (
	// DefaultBounds swings ±3% and keeps prices within 80–120% of base.
	DefaultBounds = Bounds{Variation: 0.03, Floor: 0.8, Ceil: 1.2}
	// TrackAllBounds swings ±2% and only keeps prices above 90% of base.
	TrackAllBounds = Bounds{Variation: 0.02, Floor: 0.9}
)

// Validate reports whether the bounds describe a usable range.
func (b Bounds) Validate() error {
	if b.Variation < 0 || b.Variation >= 1 {
		return fmt.Errorf("variation must be in [0, 1), got %v", b.Variation)
	}
	if b.Floor < 0 {
		return fmt.Errorf("floor must be non-negative, got %v", b.Floor)
	}
	if b.Ceil != 0 && b.Ceil < b.Floor {
		return fmt.Errorf("ceil %v is below floor %v", b.Ceil, b.Floor)
	}
	return nil
}

// Rand is the subset of *rand.Rand the simulator draws from.
type Rand interface {
	Intn(n int) int
}

// SimulatedSource fluctuates the product's base price within Bounds.
type SimulatedSource struct {
	bounds Bounds
	steps  int

	mu  sync.Mutex
	rnd Rand
}

// variation is drawn in basis-point steps of 1/10000.
const variationResolution = 10000

func NewSimulatedSource(bounds Bounds, rnd Rand) (*SimulatedSource, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		return nil, fmt.Errorf("simulated source requires a random generator")
	}
	return &SimulatedSource{
		bounds: bounds,
		steps:  int(math.Round(bounds.Variation * variationResolution)),
		rnd:    rnd,
	}, nil
}

func (s *SimulatedSource) Sample(ctx context.Context, product models.Product) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	base := product.Price
	if base.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: product %d has negative base price %s", ErrInvalidPrice, product.ID, base)
	}

	s.mu.Lock()
	draw := s.rnd.Intn(2*s.steps+1) - s.steps
	s.mu.Unlock()

	v := decimal.New(int64(draw), -4)
	return Clamp(base.Mul(decimal.NewFromInt(1).Add(v)), base, s.bounds), nil
}

// Clamp bounds candidate to [base*Floor, base*Ceil] and rounds it to cents.
func Clamp(candidate, base decimal.Decimal, b Bounds) decimal.Decimal {
	floor := base.Mul(decimal.NewFromFloat(b.Floor))
	candidate = decimal.Max(candidate, floor)
	if b.Ceil > 0 {
		candidate = decimal.Min(candidate, base.Mul(decimal.NewFromFloat(b.Ceil)))
	}
	return candidate.Round(2)
}
