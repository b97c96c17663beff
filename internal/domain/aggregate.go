package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is one row of the per-city per-day reporting table. Averages
// are rounded half-up to two decimal places.
type DailySummary struct {
	City        string    `json:"city"`
	Date        time.Time `json:"date"`
	AvgTemp     *float64  `json:"avg_temperature"`
	AvgWind     *float64  `json:"avg_wind_speed"`
	SampleCount int       `json:"sample_count"`
}

// Aggregate recomputes the daily reporting rows from the deduplicated
// observation set. It is pure and restatable: the caller replaces the
// reporting table wholesale with the result. Rows are ordered by city, then
// date. Observations with a nil field simply do not contribute to that
// field's average, matching SQL AVG over nullable columns.
func Aggregate(observations []Observation) []DailySummary {
	type bucket struct {
		tempSum decimal.Decimal
		tempN   int
		windSum decimal.Decimal
		windN   int
		count   int
	}
	type dayKey struct {
		city string
		date time.Time
	}

	buckets := make(map[dayKey]*bucket)
	for _, o := range observations {
		if o.Validate() != nil {
			continue
		}
		key := dayKey{city: o.City, date: o.Timestamp.UTC().Truncate(24 * time.Hour)}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		if o.Temperature != nil {
			b.tempSum = b.tempSum.Add(decimal.NewFromFloat(*o.Temperature))
			b.tempN++
		}
		if o.WindSpeed != nil {
			b.windSum = b.windSum.Add(decimal.NewFromFloat(*o.WindSpeed))
			b.windN++
		}
	}

	rows := make([]DailySummary, 0, len(buckets))
	for key, b := range buckets {
		rows = append(rows, DailySummary{
			City:        key.city,
			Date:        key.date,
			AvgTemp:     roundedAvg(b.tempSum, b.tempN),
			AvgWind:     roundedAvg(b.windSum, b.windN),
			SampleCount: b.count,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].City != rows[j].City {
			return rows[i].City < rows[j].City
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	return rows
}

func roundedAvg(sum decimal.Decimal, n int) *float64 {
	if n == 0 {
		return nil
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(n))).Round(2).Float64()
	return &avg
}
