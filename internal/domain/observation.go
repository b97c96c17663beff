package domain

import (
	"errors"
	"fmt"
	"time"
)

// Observation is a single current-conditions reading for a city as landed in
// the raw warehouse table. Rows are immutable once written; Seq is the
// insertion sequence assigned by the warehouse and orders duplicate writes.
type Observation struct {
	ID          int64     `json:"id"`
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	WindSpeed   *float64  `json:"wind_speed"`
	Description *string   `json:"weather_description"`
	UTCOffset   string    `json:"utc_offset"`
	InsertedAt  time.Time `json:"inserted_at"`
	Seq         int64     `json:"seq"`
}

// ErrMalformedObservation marks rows that cannot participate in
// reconciliation. Malformed rows are skipped individually, never fatal to
// the batch.
var ErrMalformedObservation = errors.New("malformed observation")

// Validate reports whether the observation carries the fields reconciliation
// depends on.
func (o Observation) Validate() error {
	if o.City == "" {
		return fmt.Errorf("%w: missing city", ErrMalformedObservation)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp (city %q)", ErrMalformedObservation, o.City)
	}
	return nil
}

// Deduplicate returns one observation per (city, timestamp) pair, keeping the
// row with the smallest insertion sequence when duplicates exist. Malformed
// rows are returned separately with per-row errors. Output order follows the
// first appearance of each surviving pair in the input, so the result is
// stable across runs.
func Deduplicate(batch []Observation) ([]Observation, []RejectedObservation) {
	type pairKey struct {
		city string
		ts   time.Time
	}

	var rejected []RejectedObservation
	index := make(map[pairKey]int, len(batch))
	survivors := make([]Observation, 0, len(batch))

	for _, obs := range batch {
		if err := obs.Validate(); err != nil {
			rejected = append(rejected, RejectedObservation{Observation: obs, Reason: err})
			continue
		}

		key := pairKey{city: obs.City, ts: obs.Timestamp.UTC()}
		at, seen := index[key]
		if !seen {
			index[key] = len(survivors)
			survivors = append(survivors, obs)
			continue
		}
		if obs.Seq < survivors[at].Seq {
			survivors[at] = obs
		}
	}

	return survivors, rejected
}

// RejectedObservation pairs a skipped observation with the reason it was
// skipped.
type RejectedObservation struct {
	Observation Observation
	Reason      error
}
