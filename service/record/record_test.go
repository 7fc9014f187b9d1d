package record

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSerializer(format AgeFormat, now time.Time) *Serializer {
	return &Serializer{AgeFormat: format, Now: func() time.Time { return now }}
}

func TestFromRaw_FullPayload(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	minted := now.Add(-3 * time.Hour)

	raw := map[string]any{
		"transaction_hash":    "9xQhash",
		"affected_account_id": "alice.tg",
		"delta_amount":        "2500000",
		"block_timestamp":     json.Number(strconv.FormatInt(minted.UnixNano(), 10)),
		"near_amount":         "15000000000000000000000000",
		"hot_amount":          "1234567",
		"claim_period":        "10",
		"cause":               "MINT",
	}

	rec, err := fixedSerializer(AgeHours, now).FromRaw(raw, "alice.tg")
	require.NoError(t, err)

	assert.Equal(t, "alice.tg", rec.Name)
	require.NotNil(t, rec.Hash)
	assert.Equal(t, "9xQhash", *rec.Hash)
	require.NotNil(t, rec.Quantity)
	assert.InDelta(t, 2.5, *rec.Quantity, 1e-12)
	require.NotNil(t, rec.Age)
	assert.Equal(t, "3", *rec.Age)
	require.NotNil(t, rec.NearAmount)
	assert.InDelta(t, 1.5, *rec.NearAmount, 1e-12)
	require.NotNil(t, rec.HotAmount)
	assert.InDelta(t, 1.234567, *rec.HotAmount, 1e-12)
	require.NotNil(t, rec.ClaimPeriod)
	assert.Equal(t, 10, *rec.ClaimPeriod)
}

func TestFromRaw_AbsentFieldsStayNil(t *testing.T) {
	rec, err := NewSerializer(AgeHours).FromRaw(map[string]any{}, "bob.tg")
	require.NoError(t, err)

	assert.Equal(t, "bob.tg", rec.Name)
	assert.True(t, rec.IsPlaceholder())
}

func TestFromRaw_NameIsQueriedAccount(t *testing.T) {
	raw := map[string]any{
		"transaction_hash":    "h1",
		"affected_account_id": "ALICE.tg",
	}

	rec, err := NewSerializer(AgeHours).FromRaw(raw, "alice.tg")
	require.NoError(t, err)
	assert.Equal(t, "alice.tg", rec.Name)
}

func TestFromRaw_EmptyClaimPeriod(t *testing.T) {
	rec, err := NewSerializer(AgeHours).FromRaw(map[string]any{"claim_period": "  "}, "bob.tg")
	require.NoError(t, err)
	assert.Nil(t, rec.ClaimPeriod)
}

func TestFromRaw_HumanAge(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := map[string]any{"block_timestamp": now.Add(-90 * time.Second).UnixNano()}

	rec, err := fixedSerializer(AgeHuman, now).FromRaw(raw, "carol.tg")
	require.NoError(t, err)
	require.NotNil(t, rec.Age)
	assert.Equal(t, "1 minute, 30 seconds", *rec.Age)
}

func TestFromRaw_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "delta amount not a number", raw: map[string]any{"delta_amount": "lots"}},
		{name: "claim period not an int", raw: map[string]any{"claim_period": "ten"}},
		{name: "timestamp wrong type", raw: map[string]any{"block_timestamp": []any{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSerializer(AgeHours).FromRaw(tt.raw, "x.tg")
			assert.Error(t, err)
		})
	}
}

func TestQuantityScaling(t *testing.T) {
	tests := []struct {
		delta    any
		expected float64
	}{
		{delta: "1000000", expected: 1},
		{delta: json.Number("123456789"), expected: 123.456789},
		{delta: float64(500000), expected: 0.5},
		{delta: "1", expected: 0.000001},
	}

	for _, tt := range tests {
		got, err := Scale(tt.delta, TokenScale)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, got, 1e-12)
	}
}

func TestValues_RendersHeaderOrderAndRounds(t *testing.T) {
	rec := &Record{
		Name:        "alice.tg",
		Hash:        StringPtr("h1"),
		Quantity:    FloatPtr(1.23456789),
		Age:         StringPtr("5"),
		NearAmount:  FloatPtr(0.5),
		ClaimPeriod: IntPtr(10),
	}

	values := rec.Values()
	require.Len(t, values, len(Headers))
	assert.Equal(t, "alice.tg", values[0])
	assert.Equal(t, "h1", values[1])
	assert.Equal(t, 1.23457, values[2])
	assert.Equal(t, "5", values[3])
	assert.Equal(t, 0.5, values[4])
	assert.Equal(t, "", values[5], "absent hot amount renders empty")
	assert.Equal(t, 10, values[6])
}

func TestValues_Placeholder(t *testing.T) {
	m := Placeholder("bob.tg").Map()
	assert.Equal(t, "bob.tg", m["name"])
	for _, h := range Headers[1:] {
		assert.Equal(t, "", m[h], h)
	}
}

func TestParseAgeFormat(t *testing.T) {
	f, err := ParseAgeFormat(" Human ")
	require.NoError(t, err)
	assert.Equal(t, AgeHuman, f)

	_, err = ParseAgeFormat("minutes")
	assert.Error(t, err)
}
