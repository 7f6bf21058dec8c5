package tracking

import (
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	Persisted Outcome = "persisted"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// Result reports what happened to one product. Tracked is true only for
// Persisted. PreviousPrice is nil for a product's first sample and
// DeltaPercent is nil whenever there is no non-zero baseline.
type Result struct {
	ProductID     uint             `json:"product_id"`
	Outcome       Outcome          `json:"outcome"`
	Tracked       bool             `json:"tracked"`
	PreviousPrice *decimal.Decimal `json:"previous_price"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	Delta         decimal.Decimal  `json:"delta"`
	DeltaPercent  *decimal.Decimal `json:"delta_percent"`
	SampleID      *uint            `json:"sample_id,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	ErrorKind     string           `json:"error_kind,omitempty"`
	Error         string           `json:"error,omitempty"`

	Err error `json:"-"`
}

// BatchResult aggregates one TrackMany run.
type BatchResult struct {
	RunID     string   `json:"run_id"`
	Total     int64    `json:"total"`
	Tracked   int64    `json:"tracked"`
	Unchanged int64    `json:"unchanged"`
	Errors    int64    `json:"errors"`
	Results   []Result `json:"results,omitempty"`
}
