// Command genmock generates deterministic weather fixtures for the ETL and
// mock API test suites. It drives the actual mock API generator under a
// seeded RNG and a frozen clock, so regenerated fixtures only change when the
// generator itself does.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -capitals data/capitals.json \
//	  -api-out data/mock/weather_envelopes.json \
//	  -etl-out data/mock/raw_observations.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/domain"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/mockapi"
)

var baseTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	capitals := flag.String("capitals", "", "path to the capital city catalog JSON")
	apiOut := flag.String("api-out", "", "output path for the API envelope fixture")
	etlOut := flag.String("etl-out", "", "output path for the raw observation fixture")
	ticks := flag.Int("ticks", 4, "number of 15-minute collection ticks to simulate")
	seed := flag.Int64("seed", 42, "RNG seed")
	flag.Parse()

	if *capitals == "" || *apiOut == "" || *etlOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -capitals, -api-out, -etl-out")
	}

	cities, err := mockapi.LoadCities(*capitals)
	if err != nil {
		return fmt.Errorf("loading city catalog: %w", err)
	}

	clk := clockwork.NewFakeClockAt(baseTime)
	gen := mockapi.NewGenerator(cities, rand.New(rand.NewSource(*seed)), clk)

	// Freeze the domain clock so reconciliation timestamps in the printed
	// stats are reproducible.
	domain.SetClock(clk)
	defer domain.SetClock(nil)

	names := gen.CityNames()
	sort.Strings(names)

	var envelopes []map[string]any
	var observations []domain.Observation
	var seq int64

	for tick := 0; tick < *ticks; tick++ {
		for _, city := range names {
			env := gen.Generate(city, "", "m")
			envelopes = append(envelopes, env)

			seq++
			obs, err := toObservation(env, seq, clk.Now())
			if err != nil {
				return fmt.Errorf("converting envelope for %s: %w", city, err)
			}
			observations = append(observations, obs)
		}
		clk.Advance(15 * time.Minute)
	}

	log.Printf("generated %d envelopes across %d cities and %d ticks", len(envelopes), len(names), *ticks)

	if err := writeJSON(*apiOut, envelopes); err != nil {
		return fmt.Errorf("writing API fixture: %w", err)
	}
	log.Printf("wrote API fixture: %s", *apiOut)

	if err := writeJSON(*etlOut, observations); err != nil {
		return fmt.Errorf("writing ETL fixture: %w", err)
	}
	log.Printf("wrote ETL fixture: %s", *etlOut)

	printStats(observations)
	return nil
}

// toObservation flattens a generated envelope into the shape the landing
// table stores, the same mapping the fetch client performs on live payloads.
func toObservation(env map[string]any, seq int64, now time.Time) (domain.Observation, error) {
	location, ok := env["location"].(map[string]any)
	if !ok {
		return domain.Observation{}, fmt.Errorf("envelope has no location block")
	}
	current, ok := env["current"].(map[string]any)
	if !ok {
		return domain.Observation{}, fmt.Errorf("envelope has no current block")
	}

	city, _ := location["name"].(string)
	if city == "" {
		return domain.Observation{}, fmt.Errorf("envelope has no location name")
	}

	observed, err := observationTime(current, now)
	if err != nil {
		return domain.Observation{}, err
	}

	obs := domain.Observation{
		ID:          seq,
		City:        city,
		Timestamp:   observed,
		Temperature: numberField(current, "temperature"),
		WindSpeed:   numberField(current, "wind_speed"),
		Seq:         seq,
	}
	if offset, ok := location["utc_offset"].(string); ok {
		obs.UTCOffset = offset
	}
	if descs, ok := current["weather_descriptions"].([]string); ok && len(descs) > 0 {
		obs.Description = &descs[0]
	}
	return obs, nil
}

// observationTime combines the provider's clock-time-only field with the
// tick's date.
func observationTime(current map[string]any, now time.Time) (time.Time, error) {
	raw, _ := current["observation_time"].(string)
	t, err := time.Parse("03:04 PM", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing observation_time %q: %w", raw, err)
	}
	day := now.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func numberField(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case int:
		f := float64(v)
		return &f
	case float64:
		return &v
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(observations []domain.Observation) {
	deduped, rejected := domain.Deduplicate(observations)
	cs, faults := domain.Reconcile(nil, deduped)
	summaries := domain.Aggregate(deduped)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Raw: %d, deduplicated: %d, malformed: %d\n", len(observations), len(deduped), len(rejected))
	fmt.Printf("Reconcile from empty: inserts=%d closes=%d unchanged=%d rejected=%d faults=%d\n",
		len(cs.Inserts), len(cs.Closes), cs.Unchanged, len(cs.Rejected), len(faults))
	fmt.Printf("Daily summary rows: %d\n", len(summaries))
	for _, s := range summaries {
		avgTemp := "null"
		if s.AvgTemp != nil {
			avgTemp = fmt.Sprintf("%.2f", *s.AvgTemp)
		}
		avgWind := "null"
		if s.AvgWind != nil {
			avgWind = fmt.Sprintf("%.2f", *s.AvgWind)
		}
		fmt.Printf("  %s %s: avg_temp=%s avg_wind=%s samples=%d\n",
			s.City, s.Date.Format("2006-01-02"), avgTemp, avgWind, s.SampleCount)
	}
}
