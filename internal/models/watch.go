package models

import (
	"time"
)

const (
	// NotAvailable marks a field that was missing or could not be parsed.
	NotAvailable = "N/A"
	// ErrorSentinel marks every identity and price field of a failed visit.
	ErrorSentinel = "Error"

	// TimestampLayout is the wire format for capture and run timestamps.
	TimestampLayout = "2006-01-02 15:04:05"
)

// PriceRecord is one row of the price snapshot.
type PriceRecord struct {
	ModelID     string    `json:"model_id"`
	ModelName   string    `json:"model_name"`
	RetailPrice string    `json:"retail_price"`
	MarketPrice string    `json:"market_price"`
	CapturedAt  time.Time `json:"timestamp"`
}

// SpecRecord is one row of the specification snapshot. Specs holds the
// normalized spec-table keys of this model only.
type SpecRecord struct {
	ModelID   string            `json:"model_id"`
	ModelName string            `json:"model_name"`
	ImageURL  string            `json:"image_url,omitempty"`
	Specs     map[string]string `json:"specs,omitempty"`
}

// PriceColumns is the fixed column order of the price snapshot.
var PriceColumns = []string{"model_id", "model_name", "retail_price", "market_price", "timestamp"}

// Row flattens the record into the price snapshot columns.
func (p PriceRecord) Row() map[string]string {
	return map[string]string{
		"model_id":     p.ModelID,
		"model_name":   p.ModelName,
		"retail_price": p.RetailPrice,
		"market_price": p.MarketPrice,
		"timestamp":    p.CapturedAt.Format(TimestampLayout),
	}
}

// Failed reports whether the record is the placeholder of a failed visit.
func (p PriceRecord) Failed() bool {
	return p.ModelID == ErrorSentinel
}

// Row flattens the record into key/value pairs. Identity columns are written
// last so a spec label that normalizes to model_id cannot overwrite them.
func (s SpecRecord) Row() map[string]string {
	row := make(map[string]string, len(s.Specs)+3)
	for k, v := range s.Specs {
		row[k] = v
	}
	if s.ImageURL != "" {
		row["image_url"] = s.ImageURL
	}
	row["model_id"] = s.ModelID
	row["model_name"] = s.ModelName
	return row
}

// Visit is the correlated price/spec pair produced by one successful fetch.
type Visit struct {
	Price PriceRecord
	Spec  SpecRecord
}

// FailedVisit builds the sentinel pair recorded for a target that could not
// be scraped. Both records carry the error identity.
func FailedVisit(capturedAt time.Time) Visit {
	return Visit{
		Price: PriceRecord{
			ModelID:     ErrorSentinel,
			ModelName:   ErrorSentinel,
			RetailPrice: ErrorSentinel,
			MarketPrice: ErrorSentinel,
			CapturedAt:  capturedAt,
		},
		Spec: SpecRecord{
			ModelID:   ErrorSentinel,
			ModelName: ErrorSentinel,
		},
	}
}
