package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

const (
	receiptsSheet = "Receipts"
	summarySheet  = "Summary"
)

// Row is one processed file in a batch export.
type Row struct {
	Path   string
	Result *entity.ProcessedDocumentResult
}

// CurrencyTotal is one line of the Summary sheet.
type CurrencyTotal struct {
	Currency string
	Count    int
	Total    decimal.Decimal // rounded to the currency's minor units
	Display  string
}

// Service produces XLSX bytes for batch exports.
type Service struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, now: time.Now}
}

// FilterByDate keeps rows whose extracted date falls in [from, to].
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> every row.
// Rows without a date are kept only when no window is given.
func (s *Service) FilterByDate(rows []Row, from, to *time.Time) []Row {
	if from == nil && to == nil {
		return rows
	}
	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(s.now().UTC())
		toDate = &t
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Result == nil || r.Result.Entities.Date == nil {
			continue
		}
		d := dateOnly(r.Result.Entities.Date.Value)
		if fromDate != nil && d.Before(*fromDate) {
			continue
		}
		if toDate != nil && d.After(*toDate) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// BuildXLSX returns a workbook with one line per row on the Receipts sheet
// and per-currency totals on the Summary sheet.
func (s *Service) BuildXLSX(rows []Row) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(receiptsSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"File", "Date", "Vendor", "Amount", "Currency", "Confidence", "OCR", "Description", "Method"}
	if err := writeRow(f, receiptsSheet, 1, headers); err != nil {
		return nil, err
	}

	line := 2
	for _, r := range rows {
		if r.Result == nil {
			continue
		}
		e := r.Result.Entities
		date, vendor := "", ""
		var amount any = ""
		if e.Date != nil {
			date = e.Date.Value.Format(dateLayout)
		}
		if e.Vendor != nil {
			vendor = e.Vendor.Value
		}
		if e.Amount != nil {
			amount = roundMinor(e.Amount.Value, e.Currency).InexactFloat64()
		}
		ocr := "no"
		if r.Result.OCRUsed {
			ocr = "yes"
		}
		file := r.Path
		if file == "" {
			file = r.Result.FileMetadata.FileName
		}
		values := []any{
			file, date, vendor, amount, e.Currency, r.Result.Confidence, ocr,
			truncate(e.Description, 140), r.Result.FileMetadata.AcquisitionMethod,
		}
		if err := writeRow(f, receiptsSheet, line, values); err != nil {
			return nil, err
		}
		line++
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 48) // file
	_ = f.SetColWidth(receiptsSheet, "B", "B", 12) // date
	_ = f.SetColWidth(receiptsSheet, "C", "C", 28) // vendor
	_ = f.SetColWidth(receiptsSheet, "D", "G", 12)
	_ = f.SetColWidth(receiptsSheet, "H", "H", 60) // description
	_ = f.SetColWidth(receiptsSheet, "I", "I", 12)

	totals := Totals(rows)
	if err := writeRow(f, summarySheet, 1, []string{"Currency", "Receipts", "Total", "Formatted"}); err != nil {
		return nil, err
	}
	for i, t := range totals {
		if err := writeRow(f, summarySheet, i+2, []any{t.Currency, t.Count, t.Total.InexactFloat64(), t.Display}); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", line-2,
		"currencies", len(totals),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// Totals sums the extracted amounts per currency, in currency order.
// Rows without an amount are not counted.
func Totals(rows []Row) []CurrencyTotal {
	sums := map[string]*CurrencyTotal{}
	for _, r := range rows {
		if r.Result == nil || r.Result.Entities.Amount == nil {
			continue
		}
		code := r.Result.Entities.Currency
		t, ok := sums[code]
		if !ok {
			t = &CurrencyTotal{Currency: code}
			sums[code] = t
		}
		t.Count++
		t.Total = t.Total.Add(r.Result.Entities.Amount.Value)
	}

	out := make([]CurrencyTotal, 0, len(sums))
	for _, t := range sums {
		t.Total = roundMinor(t.Total, t.Currency)
		t.Display = display(t.Total, t.Currency)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

func fraction(code string) int32 {
	if c := money.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// roundMinor rounds v to the minor units of code (2 when unknown).
func roundMinor(v decimal.Decimal, code string) decimal.Decimal {
	return v.Round(fraction(code))
}

func display(v decimal.Decimal, code string) string {
	if money.GetCurrency(code) == nil {
		return v.StringFixed(fraction(code)) + " " + code
	}
	minor := v.Shift(fraction(code)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
