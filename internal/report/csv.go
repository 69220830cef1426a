package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maltedev/watch-price-scraper/internal/models"
)

const (
	SpecsFile       = "watch_specs.csv"
	pricesFileStamp = "2006-01-02"
)

// PricesFile returns the dated price snapshot file name for a capture day.
func PricesFile(result *models.RunResult) string {
	return fmt.Sprintf("watch_prices_%s.csv", result.CapturedAt.Format(pricesFileStamp))
}

// CSVReport writes the price and spec snapshots of a run as CSV files. Both
// files are replaced on every run.
type CSVReport struct {
	dir string
}

func NewCSVReport(dir string) *CSVReport {
	return &CSVReport{dir: dir}
}

func (r *CSVReport) Name() string {
	return "csv"
}

func (r *CSVReport) Write(_ context.Context, result *models.RunResult) error {
	prices := make([]map[string]string, len(result.Prices))
	for i, p := range result.Prices {
		prices[i] = p.Row()
	}
	if err := writeTable(filepath.Join(r.dir, PricesFile(result)), models.PriceColumns, prices); err != nil {
		return fmt.Errorf("write price snapshot: %w", err)
	}

	specs := make([]map[string]string, len(result.Specs))
	for i, s := range result.Specs {
		specs[i] = s.Row()
	}
	if err := writeTable(filepath.Join(r.dir, SpecsFile), result.SpecColumns(), specs); err != nil {
		return fmt.Errorf("write spec snapshot: %w", err)
	}

	return nil
}

// writeTable writes header plus one record per row; missing keys are empty
// cells. The file appears atomically.
func writeTable(filename string, columns []string, rows []map[string]string) (err error) {
	if err := ensureDir(filename); err != nil {
		return err
	}

	tmpFile := filename + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpFile)
		}
	}()

	writer := csv.NewWriter(f)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}

	if err := os.Rename(tmpFile, filename); err != nil {
		return fmt.Errorf("rename csv file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
