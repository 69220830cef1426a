package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/watch-price-scraper/internal/models"
)

const (
	// ReadySelector appears once the page script has rendered the model header.
	ReadySelector = "h1.mb-0.font-weight-bolder.text-break"

	modelIDSelector      = ReadySelector
	modelNameSelector    = "h2.h4.font-weight-bolder"
	marketPriceSelector  = "div.market-price"
	retailLabel          = "Retail Price"
	retailBlockSelector  = "div.mb-4"
	retailPriceSelector  = "div.h2.mb-0.font-weight-bolder.text-secondary"
	imageSelector        = "div.mx-0.mx-lg-3.mx-xl-5 img"
	specTableRowSelector = "table.spec-table tr"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	punctuation   = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}]`)
)

// WatchPage holds every field pulled from one model page.
type WatchPage struct {
	ModelID     string
	ModelName   string
	RetailPrice string
	MarketPrice string
	ImageURL    string
	Specs       map[string]string
}

// Visit packages the page into the correlated record pair.
func (w *WatchPage) Visit(capturedAt time.Time) models.Visit {
	return models.Visit{
		Price: models.PriceRecord{
			ModelID:     w.ModelID,
			ModelName:   w.ModelName,
			RetailPrice: w.RetailPrice,
			MarketPrice: w.MarketPrice,
			CapturedAt:  capturedAt,
		},
		Spec: models.SpecRecord{
			ModelID:   w.ModelID,
			ModelName: w.ModelName,
			ImageURL:  w.ImageURL,
			Specs:     w.Specs,
		},
	}
}

type WatchParser struct{}

func NewWatchParser() *WatchParser {
	return &WatchParser{}
}

// ParseWatchPage extracts every field independently. Only an unreadable
// document is an error.
func (p *WatchParser) ParseWatchPage(html string) (*WatchPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &WatchPage{
		ModelID:     p.extractModelID(doc),
		ModelName:   p.extractModelName(doc),
		RetailPrice: p.extractRetailPrice(doc),
		MarketPrice: p.extractMarketPrice(doc),
		ImageURL:    p.extractImage(doc),
		Specs:       p.ExtractSpecTable(doc),
	}, nil
}

func (p *WatchParser) extractModelID(doc *goquery.Document) string {
	return textOr(doc.Find(modelIDSelector).First(), models.NotAvailable)
}

func (p *WatchParser) extractModelName(doc *goquery.Document) string {
	name := doc.Find(modelNameSelector).First()
	if name.Length() == 0 {
		name = doc.Find("h2").First()
	}
	return textOr(name, models.NotAvailable)
}

func (p *WatchParser) extractMarketPrice(doc *goquery.Document) string {
	market := doc.Find(marketPriceSelector).First()
	if market.Length() == 0 {
		return models.NotAvailable
	}
	return CleanPrice(market.Text())
}

// extractRetailPrice reads the price figure from the first block whose
// visible "Retail Price" label encloses one.
func (p *WatchParser) extractRetailPrice(doc *goquery.Document) string {
	for _, label := range findOwnText(doc, retailLabel) {
		price := label.Closest(retailBlockSelector).Find(retailPriceSelector).First()
		if price.Length() > 0 {
			return CleanPrice(price.Text())
		}
	}
	return models.NotAvailable
}

func (p *WatchParser) extractImage(doc *goquery.Document) string {
	src, ok := doc.Find(imageSelector).First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return models.NotAvailable
	}
	return strings.TrimSpace(src)
}

// ExtractSpecTable reads every two-cell row of the spec table. Rows with a
// duplicate normalized label overwrite earlier ones.
func (p *WatchParser) ExtractSpecTable(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	doc.Find(specTableRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() != 2 {
			return
		}
		key := NormalizeKey(cells.Eq(0).Text())
		if key == "" {
			return
		}
		specs[key] = strings.TrimSpace(cells.Eq(1).Text())
	})
	return specs
}

// CleanPrice keeps only digits and decimal points. Text without any digits
// becomes N/A so it cannot be mistaken for zero.
func CleanPrice(text string) string {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return models.NotAvailable
	}
	return cleaned
}

// NormalizeKey turns a spec-table label into a column name.
func NormalizeKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = punctuation.ReplaceAllString(key, "")
	key = strings.Join(strings.Fields(key), "_")
	if key == "references" {
		key = "reference"
	}
	return key
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return fallback
	}
	return text
}

const hiddenContainers = "script, style, noscript, template"

// findOwnText returns, in document order, every rendered element whose own
// text nodes contain needle.
func findOwnText(doc *goquery.Document, needle string) []*goquery.Selection {
	var found []*goquery.Selection
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Closest(hiddenContainers).Length() > 0 {
			return
		}
		own := s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "#text"
		}).Text()
		if strings.Contains(own, needle) {
			found = append(found, s)
		}
	})
	return found
}
