package nats

import (
	"time"

	"github.com/amr0ny/bc-parser/service/record"
)

// RecordEvent is published to "records.{name}" for every report row.
type RecordEvent struct {
	Name        string   `json:"name"`
	Hash        *string  `json:"hash,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Age         *string  `json:"age,omitempty"`
	NearAmount  *float64 `json:"near_amount,omitempty"`
	HotAmount   *float64 `json:"hot_amount,omitempty"`
	ClaimPeriod *int     `json:"claim_period,omitempty"`

	// Found is false for placeholder rows.
	Found bool `json:"found"`

	PublishedAt time.Time `json:"published_at"`
}

// Cycle event kinds.
const (
	CycleStarted   = "started"
	CycleCompleted = "completed"
)

// CycleEvent is published to "records._cycle" when a report is cleared and when it is stamped.
type CycleEvent struct {
	Kind        string    `json:"kind"`
	Rows        int       `json:"rows"`
	At          time.Time `json:"at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts a record to an event for publishing.
// Quantity is rounded the same way the report renders it.
func FromRecord(rec *record.Record) *RecordEvent {
	event := &RecordEvent{
		Name:        rec.Name,
		Hash:        rec.Hash,
		Age:         rec.Age,
		NearAmount:  rec.NearAmount,
		HotAmount:   rec.HotAmount,
		ClaimPeriod: rec.ClaimPeriod,
		Found:       !rec.IsPlaceholder(),
		PublishedAt: time.Now().UTC(),
	}
	if rec.Quantity != nil {
		q := record.Round(*rec.Quantity, record.QuantityPrecision)
		event.Quantity = &q
	}
	return event
}
