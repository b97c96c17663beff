package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrOutOfOrder marks a hash-differing observation whose timestamp is older
// than the open dimension row for its city. Inserting it would either rewrite
// history or leave two current rows, so it is rejected instead.
var ErrOutOfOrder = errors.New("out-of-order observation")

// IntegrityError reports a city whose dimension already violates the
// one-current-row invariant at the start of a run. Reconciliation for that
// city is aborted; picking a survivor automatically would hide corruption.
type IntegrityError struct {
	City        string
	CurrentRows int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("dimension integrity: city %q has %d current rows, want at most 1", e.City, e.CurrentRows)
}

// Close identifies an open dimension row to be closed and the instant it
// stops being current.
type Close struct {
	SurrogateKey string
	City         string
	ValidTo      time.Time
}

// ChangeSet is the outcome of one reconciliation pass: rows to insert, open
// rows to close, and the observations that produced neither. Applying the
// closes and inserts for a city must be atomic as a unit.
type ChangeSet struct {
	Inserts   []DimensionRecord
	Closes    []Close
	Unchanged int
	Rejected  []RejectedObservation
}

// Empty reports whether the change set carries no writes.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Closes) == 0
}

// Reconcile decides, for each deduplicated observation, whether it opens a
// new dimension version, supersedes the current one, or is a duplicate to
// discard. current holds the open rows loaded from the warehouse, at most one
// per city. The decision per city:
//
//   - no open row: insert a new open row with ValidFrom = observation time.
//   - equal content hash: no-op, regardless of timestamp.
//   - differing hash, observation not older than the open row: close the open
//     row (ValidTo = processing time) and insert the replacement.
//   - differing hash, observation older than the open row: reject with
//     ErrOutOfOrder.
//
// Cities that enter the run with more than one open row are skipped entirely
// and reported as IntegrityErrors; their observations appear in neither
// Inserts nor Rejected. Reconcile is pure apart from reading the package
// clock for ValidTo stamps.
func Reconcile(current []DimensionRecord, observations []Observation) (ChangeSet, []*IntegrityError) {
	now := clock.Now().UTC()

	open := make(map[string]DimensionRecord, len(current))
	corrupt := make(map[string]int)
	for _, row := range current {
		if !row.IsCurrent {
			continue
		}
		if _, dup := open[row.City]; dup {
			if corrupt[row.City] == 0 {
				corrupt[row.City] = 2
			} else {
				corrupt[row.City]++
			}
			continue
		}
		open[row.City] = row
	}

	var faults []*IntegrityError
	for city, n := range corrupt {
		faults = append(faults, &IntegrityError{City: city, CurrentRows: n})
	}
	sort.Slice(faults, func(i, j int) bool { return faults[i].City < faults[j].City })

	byCity := groupByCity(observations)

	cities := make([]string, 0, len(byCity))
	for city := range byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var cs ChangeSet
	for _, city := range cities {
		if _, bad := corrupt[city]; bad {
			continue
		}
		reconcileCity(&cs, open, city, byCity[city], now)
	}

	return cs, faults
}

// reconcileCity walks one city's observations in timestamp order, threading
// the evolving open row through the batch. A row inserted earlier in the same
// batch and superseded later in it is closed in place rather than recorded as
// a warehouse Close, since it does not exist in storage yet.
func reconcileCity(cs *ChangeSet, open map[string]DimensionRecord, city string, obs []Observation, now time.Time) {
	sort.Slice(obs, func(i, j int) bool {
		if !obs[i].Timestamp.Equal(obs[j].Timestamp) {
			return obs[i].Timestamp.Before(obs[j].Timestamp)
		}
		return obs[i].Seq < obs[j].Seq
	})

	cur, hasCur := open[city]
	// Index into cs.Inserts of the pending open row for this city, or -1 if
	// the open row lives in the warehouse.
	pending := -1

	for _, o := range obs {
		if !hasCur {
			rec := newDimensionRecord(o)
			cs.Inserts = append(cs.Inserts, rec)
			pending = len(cs.Inserts) - 1
			cur, hasCur = rec, true
			continue
		}

		hash := ContentHash(o)
		if hash == cur.ContentHash {
			cs.Unchanged++
			continue
		}

		if o.Timestamp.Before(cur.Timestamp) {
			cs.Rejected = append(cs.Rejected, RejectedObservation{
				Observation: o,
				Reason: fmt.Errorf("%w: city %q observation at %s is older than open row at %s",
					ErrOutOfOrder, city, o.Timestamp.Format(time.RFC3339), cur.Timestamp.Format(time.RFC3339)),
			})
			continue
		}

		if pending >= 0 {
			cs.Inserts[pending].IsCurrent = false
			cs.Inserts[pending].ValidTo = now
		} else {
			cs.Closes = append(cs.Closes, Close{SurrogateKey: cur.SurrogateKey, City: city, ValidTo: now})
		}

		rec := newDimensionRecord(o)
		cs.Inserts = append(cs.Inserts, rec)
		pending = len(cs.Inserts) - 1
		cur = rec
	}
}

func groupByCity(observations []Observation) map[string][]Observation {
	byCity := make(map[string][]Observation)
	for _, o := range observations {
		byCity[o.City] = append(byCity[o.City], o)
	}
	return byCity
}
