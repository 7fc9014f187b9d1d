package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amr0ny/bc-parser/service/elapsed"
	"github.com/shopspring/decimal"
)

// Raw field names of the merged explorer payload.
const (
	FieldTransactionHash   = "transaction_hash"
	FieldAffectedAccountID = "affected_account_id"
	FieldDeltaAmount       = "delta_amount"
	FieldBlockTimestamp    = "block_timestamp"
	FieldNearAmount        = "near_amount"
	FieldHotAmount         = "hot_amount"
	FieldClaimPeriod       = "claim_period"
)

var (
	// TokenScale divides raw token amounts (delta_amount, hot_amount).
	// The mint contract reports 6 decimals.
	TokenScale = decimal.New(1, 6)

	// NearScale divides the raw native balance.
	NearScale = decimal.New(1, 25)
)

// AgeFormat selects how the Age column is rendered.
type AgeFormat string

const (
	// AgeHours renders whole elapsed hours, e.g. "37".
	AgeHours AgeFormat = "hours"
	// AgeHuman renders e.g. "1 day, 13 hours, 2 minutes".
	AgeHuman AgeFormat = "human"
)

// ParseAgeFormat validates an age format name.
func ParseAgeFormat(s string) (AgeFormat, error) {
	switch AgeFormat(strings.ToLower(strings.TrimSpace(s))) {
	case AgeHours:
		return AgeHours, nil
	case AgeHuman:
		return AgeHuman, nil
	default:
		return "", fmt.Errorf("unknown age format %q (want %q or %q)", s, AgeHours, AgeHuman)
	}
}

// Serializer turns merged raw payloads into Records.
type Serializer struct {
	AgeFormat AgeFormat
	Now       func() time.Time
}

// NewSerializer returns a Serializer using the wall clock.
func NewSerializer(format AgeFormat) *Serializer {
	if format == "" {
		format = AgeHours
	}
	return &Serializer{AgeFormat: format, Now: time.Now}
}

// FromRaw maps a merged transaction/account payload to a Record.
// Name is always the queried account so each account keys exactly one row.
// A present but malformed numeric field is an error.
func (s *Serializer) FromRaw(raw map[string]any, account string) (*Record, error) {
	rec := &Record{Name: account}

	if hash, ok := stringField(raw, FieldTransactionHash); ok && hash != "" {
		rec.Hash = &hash
	}

	var err error
	if rec.Quantity, err = scaledField(raw, FieldDeltaAmount, TokenScale); err != nil {
		return nil, err
	}
	if rec.NearAmount, err = scaledField(raw, FieldNearAmount, NearScale); err != nil {
		return nil, err
	}
	if rec.HotAmount, err = scaledField(raw, FieldHotAmount, TokenScale); err != nil {
		return nil, err
	}

	if v, ok := raw[FieldBlockTimestamp]; ok && v != nil {
		ts, err := toDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FieldBlockTimestamp, err)
		}
		age := s.age(ts.IntPart())
		rec.Age = &age
	}

	if cp, ok := stringField(raw, FieldClaimPeriod); ok && strings.TrimSpace(cp) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cp))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s %q: %w", FieldClaimPeriod, cp, err)
		}
		rec.ClaimPeriod = &n
	}

	return rec, nil
}

func (s *Serializer) age(tsNanos int64) string {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.AgeFormat == AgeHuman {
		return elapsed.Human(tsNanos, now)
	}
	return hoursString(elapsed.Hours(tsNanos, now))
}

// Scale divides a raw amount by scale and returns it as a float.
func Scale(v any, scale decimal.Decimal) (float64, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	return d.Div(scale).InexactFloat64(), nil
}

func scaledField(raw map[string]any, key string, scale decimal.Decimal) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := Scale(v, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return &f, nil
}

// stringField returns a string view of raw[key]. Numbers are formatted without exponent.
func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return fmt.Sprint(t), true
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case decimal.Decimal:
		return t, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported numeric type %T", v)
	}
}
