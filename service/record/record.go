// Package record defines the normalized report row and its construction from raw
// explorer payloads.
package record

import (
	"math"
	"strconv"
)

// Record is the normalized per-account report row.
// Every field except Name is optional; nil means "unknown", never zero.
type Record struct {
	Name        string   `json:"name"`
	Hash        *string  `json:"hash,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Age         *string  `json:"age,omitempty"`
	NearAmount  *float64 `json:"near_amount,omitempty"`
	HotAmount   *float64 `json:"hot_amount,omitempty"`
	ClaimPeriod *int     `json:"claim_period,omitempty"`
}

// Headers is the fixed column order of the report.
var Headers = []string{"name", "hash", "quantity", "age", "near_amount", "hot_amount", "claim_period"}

// QuantityPrecision is the number of decimals Quantity is rounded to when rendered.
const QuantityPrecision = 5

// Placeholder returns the "not found yet" record for an account.
func Placeholder(name string) *Record {
	return &Record{Name: name}
}

// IsPlaceholder reports whether only Name is populated.
func (r *Record) IsPlaceholder() bool {
	return r.Hash == nil && r.Quantity == nil && r.Age == nil &&
		r.NearAmount == nil && r.HotAmount == nil && r.ClaimPeriod == nil
}

// Values renders the record in Headers order. Absent fields render as "".
func (r *Record) Values() []any {
	return []any{
		r.Name,
		stringOrEmpty(r.Hash),
		floatOrEmpty(roundPtr(r.Quantity, QuantityPrecision)),
		stringOrEmpty(r.Age),
		floatOrEmpty(r.NearAmount),
		floatOrEmpty(r.HotAmount),
		intOrEmpty(r.ClaimPeriod),
	}
}

// Map renders the record keyed by header name, with the same rules as Values.
func (r *Record) Map() map[string]any {
	values := r.Values()
	m := make(map[string]any, len(Headers))
	for i, h := range Headers {
		m[h] = values[i]
	}
	return m
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func roundPtr(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, decimals)
	return &r
}

func stringOrEmpty(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}

func intOrEmpty(i *int) any {
	if i == nil {
		return ""
	}
	return *i
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// hoursString renders an hour count for the Age column.
func hoursString(h int) string {
	return strconv.Itoa(h)
}
