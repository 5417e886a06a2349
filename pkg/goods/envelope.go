package goods

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawItem is one undecoded price item from a listing response. Field
// access goes through the alias table so both casing variants the API
// emits resolve to the same value.
type RawItem map[string]json.RawMessage

// fieldAliases maps a canonical field name to the spellings observed in
// API responses, in priority order.
var fieldAliases = map[string][]string{
	"nmID":       {"nmID", "nmId", "nm_id"},
	"vendorCode": {"vendorCode", "vendor_code"},
}

// raw returns the first alias of field present in the item.
func (it RawItem) raw(field string) (json.RawMessage, bool) {
	aliases, ok := fieldAliases[field]
	if !ok {
		aliases = []string{field}
	}
	for _, name := range aliases {
		if v, ok := it[name]; ok && !bytes.Equal(v, []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// String returns a string field, or "" when absent.
func (it RawItem) String(field string) string {
	v, ok := it.raw(field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// Int64 returns a numeric field, or nil when absent or unparsable.
func (it RawItem) Int64(field string) *int64 {
	v, ok := it.raw(field)
	if !ok {
		return nil
	}
	var n int64
	if err := json.Unmarshal(v, &n); err != nil {
		return nil
	}
	return &n
}

// Float64 returns a numeric field, or nil when absent or unparsable.
func (it RawItem) Float64(field string) *float64 {
	v, ok := it.raw(field)
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return nil
	}
	return &f
}

// Bool returns a boolean field, or false when absent.
func (it RawItem) Bool(field string) bool {
	v, ok := it.raw(field)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false
	}
	return b
}

// Items returns a nested array field as raw items.
func (it RawItem) Items(field string) []RawItem {
	v, ok := it.raw(field)
	if !ok {
		return nil
	}
	var items []RawItem
	if err := json.Unmarshal(v, &items); err != nil {
		return nil
	}
	return items
}

// listingEnvelope is the nested response shape of the goods endpoints.
type listingEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// nestedListing is the innermost wrapper around the goods array.
type nestedListing struct {
	ListGoods []RawItem `json:"listGoods"`
}

// DecodeListing extracts price items from any of the known response
// envelopes, tried in priority order:
//
//	{"data": {"listGoods": [...]}}
//	{"data": [...]}
//	[...]
func DecodeListing(body []byte) ([]RawItem, error) {
	// Bare array.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []RawItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse goods array: %w", err)
		}
		return items, nil
	}

	var envelope listingEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("parse goods envelope: %w", err)
	}
	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return nil, nil
	}

	data := bytes.TrimSpace(envelope.Data)

	// {"data": [...]}
	if len(data) > 0 && data[0] == '[' {
		var items []RawItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse goods data array: %w", err)
		}
		return items, nil
	}

	// {"data": {"listGoods": [...]}}
	var nested nestedListing
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("parse goods list: %w", err)
	}
	return nested.ListGoods, nil
}
