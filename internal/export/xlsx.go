// Package export writes the final price records to a spreadsheet.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/seller-tools/wb-price-export/pkg/goods"
)

// SheetName is the single output sheet.
const SheetName = "Prices"

// maxColumnWidth caps autosized columns.
const maxColumnWidth = 50

// header lists the output columns in order.
var header = []string{
	"cabinet",
	"cabinet_id",
	"nm_id",
	"vendor_code",
	"size_id",
	"size_name",
	"base_price",
	"discounted_price",
	"club_discounted_price",
	"discount_percent",
	"club_discount_percent",
	"currency",
	"editable_size_price",
	"error",
}

// WritePrices writes records to a timestamped spreadsheet in outputDir
// and returns the file path. Rows are sorted by cabinet, vendor code and
// size name; columns are autosized.
func WritePrices(records []goods.PriceRecord, outputDir string) (string, error) {
	logger := log.With().Str("component", "export").Logger()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	sorted := make([]goods.PriceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Cabinet != sorted[j].Cabinet {
			return sorted[i].Cabinet < sorted[j].Cabinet
		}
		if sorted[i].VendorCode != sorted[j].VendorCode {
			return sorted[i].VendorCode < sorted[j].VendorCode
		}
		return sorted[i].SizeName < sorted[j].SizeName
	})

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(header))
	for col, name := range header {
		widths[col] = len(name)
	}

	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	for rowIdx, record := range sorted {
		for col, value := range rowValues(record) {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return "", fmt.Errorf("write row %d: %w", rowIdx+2, err)
			}
			if w := len(fmt.Sprintf("%v", value)); w > widths[col] {
				widths[col] = w
			}
		}
	}

	for col := range header {
		name, _ := excelize.ColumnNumberToName(col + 1)
		width := widths[col] + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(SheetName, name, name, float64(width)); err != nil {
			return "", fmt.Errorf("set column width: %w", err)
		}
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(outputDir, fmt.Sprintf("wb_prices_%s.xlsx", timestamp))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save spreadsheet: %w", err)
	}

	filled := 0
	for _, r := range sorted {
		if r.BasePrice != nil {
			filled++
		}
	}

	logger.Info().
		Str("file", path).
		Int("rows", len(sorted)).
		Int("prices_filled", filled).
		Msg("Export written")

	return path, nil
}

// rowValues maps a record onto the output columns. nil means an empty cell.
func rowValues(r goods.PriceRecord) []any {
	values := make([]any, len(header))
	values[0] = r.Cabinet
	values[1] = r.CabinetID
	if r.NmID != nil {
		values[2] = *r.NmID
	}
	values[3] = r.VendorCode
	if r.SizeID != nil {
		values[4] = *r.SizeID
	}
	if r.SizeName != "" {
		values[5] = r.SizeName
	}
	if r.BasePrice != nil {
		values[6] = *r.BasePrice
	}
	if r.DiscountedPrice != nil {
		values[7] = *r.DiscountedPrice
	}
	if r.ClubDiscountedPrice != nil {
		values[8] = *r.ClubDiscountedPrice
	}
	if r.DiscountPercent != nil {
		values[9] = *r.DiscountPercent
	}
	if r.ClubDiscountPercent != nil {
		values[10] = *r.ClubDiscountPercent
	}
	values[11] = r.Currency
	values[12] = r.EditableSizePrice
	if r.Error != "" {
		values[13] = r.Error
	}
	return values
}
