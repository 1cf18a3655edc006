package docstore

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DOCUMENT VALUE HELPERS
// =============================================================================
// Documents decoded from JSON carry loosely-typed values (float64,
// json.Number, string). These helpers normalize the common readings so
// entity codecs don't each reinvent the tolerance rules.

// String reads a string field; missing or non-string yields "".
func String(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// Bool reads a boolean field; missing or non-bool yields false.
func Bool(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// Child reads a nested object field; missing or non-object yields nil.
func Child(doc map[string]any, key string) map[string]any {
	m, _ := doc[key].(map[string]any)
	return m
}

// Int reads an integer field from a number, json.Number, or numeric
// string. Reports ok=false when the field is absent or unreadable.
func Int(doc map[string]any, key string) (int, bool) {
	d, ok := Decimal(doc, key)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

// Decimal reads a monetary or numeric field. Accepts JSON numbers,
// json.Number, and numeric strings; anything else reads as not-ok.
func Decimal(doc map[string]any, key string) (decimal.Decimal, bool) {
	v, ok := doc[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Zero, false
	}
}
