package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriceRecord_Row(t *testing.T) {
	p := PriceRecord{
		ModelID:     "5711/1A",
		ModelName:   "Nautilus",
		RetailPrice: "31000",
		MarketPrice: NotAvailable,
		CapturedAt:  time.Date(2026, 10, 19, 6, 5, 9, 0, time.UTC),
	}

	row := p.Row()
	assert.Len(t, row, len(PriceColumns))
	for _, col := range PriceColumns {
		assert.Contains(t, row, col)
	}
	assert.Equal(t, "2026-10-19 06:05:09", row["timestamp"])
	assert.Equal(t, "N/A", row["market_price"])
	assert.False(t, p.Failed())
}

func TestSpecRecord_RowIdentityWins(t *testing.T) {
	s := SpecRecord{
		ModelID:   "126610LN",
		ModelName: "Submariner",
		ImageURL:  "https://img.example.test/sub.jpg",
		Specs: map[string]string{
			"model_id": "spoofed",
			"brand":    "Rolex",
		},
	}

	row := s.Row()
	assert.Equal(t, "126610LN", row["model_id"])
	assert.Equal(t, "Submariner", row["model_name"])
	assert.Equal(t, "Rolex", row["brand"])
	assert.Equal(t, "https://img.example.test/sub.jpg", row["image_url"])
}

func TestSpecRecord_RowWithoutImage(t *testing.T) {
	row := SpecRecord{ModelID: "x", ModelName: "y"}.Row()
	assert.NotContains(t, row, "image_url")
	assert.Len(t, row, 2)
}

func TestFailedVisit(t *testing.T) {
	at := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	v := FailedVisit(at)

	assert.True(t, v.Price.Failed())
	assert.Equal(t, ErrorSentinel, v.Price.ModelName)
	assert.Equal(t, ErrorSentinel, v.Price.RetailPrice)
	assert.Equal(t, ErrorSentinel, v.Price.MarketPrice)
	assert.Equal(t, at, v.Price.CapturedAt)
	assert.Equal(t, ErrorSentinel, v.Spec.ModelID)
	assert.Equal(t, ErrorSentinel, v.Spec.ModelName)
	assert.Empty(t, v.Spec.Specs)
}
