package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EpsilonValue parses tracking.epsilon, the smallest price move that is
// recorded.
func (c *Config) EpsilonValue() (decimal.Decimal, error) {
	eps, err := decimal.NewFromString(c.Tracking.Epsilon)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tracking.epsilon %q: %w", c.Tracking.Epsilon, err)
	}
	if !eps.IsPositive() {
		return decimal.Zero, fmt.Errorf("tracking.epsilon must be positive, got %s", eps)
	}
	return eps, nil
}
