package domain

import (
	"time"

	"github.com/google/uuid"
)

// SentinelValidTo is the "infinite future" ValidTo carried by every open
// dimension row until it is superseded.
var SentinelValidTo = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// DimensionRecord is one version of a city's weather in the type-2 dimension.
// For a given city at most one row has IsCurrent true; that row's ValidTo is
// SentinelValidTo. Rows are never deleted, only closed.
type DimensionRecord struct {
	SurrogateKey  string    `json:"surrogate_key"`
	City          string    `json:"city"`
	ObservationID int64     `json:"observation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   *float64  `json:"temperature"`
	Description   *string   `json:"description"`
	WindSpeed     *float64  `json:"wind_speed"`
	ContentHash   string    `json:"content_hash"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	IsCurrent     bool      `json:"is_current"`
}

// newDimensionRecord builds an open dimension row from an observation.
func newDimensionRecord(obs Observation) DimensionRecord {
	return DimensionRecord{
		SurrogateKey:  uuid.NewString(),
		City:          obs.City,
		ObservationID: obs.ID,
		Timestamp:     obs.Timestamp,
		Temperature:   obs.Temperature,
		Description:   obs.Description,
		WindSpeed:     obs.WindSpeed,
		ContentHash:   ContentHash(obs),
		ValidFrom:     obs.Timestamp,
		ValidTo:       SentinelValidTo,
		IsCurrent:     true,
	}
}
