package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

const (
	summarySheet = "Daily Summaries"
	capsSheet    = "Closing Market Caps"
)

// Exporter writes end-of-day workbooks and historical CSV dumps to a
// directory on disk.
type Exporter struct {
	dir    string
	logger *logger.Logger
}

// NewExporter creates an exporter rooted at dir. The directory is
// created on first write, not here.
func NewExporter(dir string, log *logger.Logger) *Exporter {
	return &Exporter{dir: dir, logger: log}
}

// WriteDailyWorkbook writes an xlsx workbook with the day's EOD rows and
// the closing market-cap snapshot, and returns the file path.
func (e *Exporter) WriteDailyWorkbook(day time.Time, summaries []contracts.DailyIndexSummary, closingCaps map[string]contracts.MarketCapRecord) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), summarySheet)

	headers := []string{"Sector Code", "Sector Name", "Date", "Start Index", "End Index", "Daily Return %"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(summarySheet, cell, h)
	}

	for row, s := range summaries {
		values := []interface{}{
			s.SectorCode,
			s.SectorName,
			s.Date.Format("2006-01-02"),
			s.StartIndex,
			s.EndIndex,
			s.DailyReturn * 100,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(summarySheet, cell, v)
		}
	}

	if len(closingCaps) > 0 {
		if err := e.writeCapsSheet(f, closingCaps); err != nil {
			return "", err
		}
	}

	path := filepath.Join(e.dir, fmt.Sprintf("sector_indices_%s.xlsx", day.Format("2006-01-02")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(summaries),
	}).Info("Wrote daily index workbook")
	return path, nil
}

// writeCapsSheet appends the closing market-cap snapshot, one company
// per row in sorted order.
func (e *Exporter) writeCapsSheet(f *excelize.File, caps map[string]contracts.MarketCapRecord) error {
	if _, err := f.NewSheet(capsSheet); err != nil {
		return fmt.Errorf("create caps sheet: %w", err)
	}

	headers := []string{"Company", "LTP", "Total Shares", "Free Float %", "Market Cap", "Free Float MCap"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(capsSheet, cell, h)
	}

	companies := make([]string, 0, len(caps))
	for company := range caps {
		companies = append(companies, company)
	}
	sort.Strings(companies)

	for row, company := range companies {
		rec := caps[company]
		values := []interface{}{
			rec.Company,
			rec.LTP,
			rec.TotalShares,
			rec.FreeFloatPct,
			rec.MarketCap,
			rec.FreeFloatMCap,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(capsSheet, cell, v)
		}
	}
	return nil
}

// WriteHistoryCSV writes computed index ticks to a CSV file and returns
// the file path. Used by the historical replay command.
func (e *Exporter) WriteHistoryCSV(name string, values []contracts.SectorIndexValue) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "sector_code", "sector_name", "prev_index", "index", "total_return", "num_companies"}); err != nil {
		return "", err
	}
	for _, v := range values {
		record := []string{
			v.Timestamp.Format(time.RFC3339),
			v.SectorCode,
			v.SectorName,
			strconv.FormatFloat(v.PrevIndex, 'f', 6, 64),
			strconv.FormatFloat(v.Index, 'f', 6, 64),
			strconv.FormatFloat(v.TotalReturn, 'f', 6, 64),
			strconv.Itoa(v.NumCompanies),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(values),
	}).Info("Wrote historical index CSV")
	return path, nil
}
