package goods

// DefaultCurrency is assumed when a price item carries no currency code.
const DefaultCurrency = "RUB"

// PriceRecord is one flat output row: a (product, size) pair, or a whole
// product when the item carries no per-size pricing. Absent numeric
// fields stay nil, never zero.
type PriceRecord struct {
	Cabinet   string
	CabinetID string

	NmID       *int64
	VendorCode string

	SizeID   *int64
	SizeName string

	BasePrice           *float64
	DiscountedPrice     *float64
	ClubDiscountedPrice *float64

	DiscountPercent     *float64
	ClubDiscountPercent *float64

	Currency          string
	EditableSizePrice bool

	// Error marks a row synthesized for an identifier no strategy could
	// resolve. Price fields are absent on such rows.
	Error string
}

// ErrorRecord builds the marker row for an unresolved identifier.
func ErrorRecord(cabinet, cabinetID, vendorCode string) PriceRecord {
	return PriceRecord{
		Cabinet:    cabinet,
		CabinetID:  cabinetID,
		VendorCode: vendorCode,
		Error:      "failed to retrieve prices",
	}
}

// Normalize flattens one raw price item into records: one per size entry
// when a sizes array is present, otherwise a single record reading price
// fields from the item's top level. Pure, no side effects.
func Normalize(item RawItem) []PriceRecord {
	base := PriceRecord{
		NmID:                item.Int64("nmID"),
		VendorCode:          item.String("vendorCode"),
		DiscountPercent:     item.Float64("discount"),
		ClubDiscountPercent: item.Float64("clubDiscount"),
		Currency:            item.String("currencyIsoCode4217"),
		EditableSizePrice:   item.Bool("editableSizePrice"),
	}
	if base.Currency == "" {
		base.Currency = DefaultCurrency
	}

	sizes := item.Items("sizes")
	if len(sizes) == 0 {
		record := base
		record.BasePrice = item.Float64("price")
		record.DiscountedPrice = item.Float64("discountedPrice")
		record.ClubDiscountedPrice = item.Float64("clubDiscountedPrice")
		return []PriceRecord{record}
	}

	records := make([]PriceRecord, 0, len(sizes))
	for _, size := range sizes {
		record := base
		record.SizeID = size.Int64("sizeID")
		record.SizeName = size.String("techSizeName")
		record.BasePrice = size.Float64("price")
		record.DiscountedPrice = size.Float64("discountedPrice")
		record.ClubDiscountedPrice = size.Float64("clubDiscountedPrice")
		records = append(records, record)
	}
	return records
}

// NormalizeAll flattens a listing into records.
func NormalizeAll(items []RawItem) []PriceRecord {
	var records []PriceRecord
	for _, item := range items {
		records = append(records, Normalize(item)...)
	}
	return records
}
