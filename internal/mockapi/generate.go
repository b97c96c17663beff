package mockapi

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// CityInfo describes one catalog entry from the capitals file.
type CityInfo struct {
	Country    string `json:"country"`
	Region     string `json:"region"`
	Lat        string `json:"lat"`
	Lon        string `json:"lon"`
	TimezoneID string `json:"timezone_id"`
}

// LoadCities reads the capitals catalog the generator draws city metadata
// from.
func LoadCities(path string) (map[string]CityInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	var cities map[string]CityInfo
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("parse cities file %s: %w", path, err)
	}
	return cities, nil
}

type weatherCondition struct {
	Code        int
	Description string
}

var weatherConditions = []weatherCondition{
	{113, "Sunny"},
	{116, "Partly cloudy"},
	{119, "Cloudy"},
	{122, "Overcast"},
	{176, "Patchy rain possible"},
	{296, "Light rain"},
}

var windDirections = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Generator produces randomized current-conditions payloads in the upstream
// provider's envelope shape.
type Generator struct {
	cities map[string]CityInfo
	rng    *rand.Rand
	clock  clockwork.Clock
}

// NewGenerator creates a Generator over the city catalog. Tests pass a seeded
// source and fake clock for reproducible payloads.
func NewGenerator(cities map[string]CityInfo, rng *rand.Rand, clk clockwork.Clock) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // simulation data, not crypto
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Generator{cities: cities, rng: rng, clock: clk}
}

// CityNames lists the catalog cities, for the documentation index.
func (g *Generator) CityNames() []string {
	names := make([]string, 0, len(g.cities))
	for name := range g.cities {
		names = append(names, name)
	}
	return names
}

// Generate builds a weather payload for the named city. Catalog lookups are
// case-insensitive; unknown cities get randomized coordinates and UTC time,
// the same fallback the upstream provider uses.
func (g *Generator) Generate(cityName, country, unit string) map[string]any {
	info, canonical, known := g.lookup(cityName)
	if !known {
		info = CityInfo{
			Country:    country,
			Region:     cityName,
			Lat:        fmt.Sprintf("%.3f", g.rng.Float64()*180-90),
			Lon:        fmt.Sprintf("%.3f", g.rng.Float64()*360-180),
			TimezoneID: "UTC",
		}
		if info.Country == "" {
			info.Country = "Unknown"
		}
		canonical = cityName
	}

	loc, err := time.LoadLocation(info.TimezoneID)
	if err != nil {
		loc = time.UTC
	}
	now := g.clock.Now().In(loc)

	_, offsetSeconds := now.Zone()
	utcOffset := fmt.Sprintf("%d.0", offsetSeconds/3600)

	cond := weatherConditions[g.rng.Intn(len(weatherConditions))]

	return map[string]any{
		"request": map[string]any{
			"type":     "City",
			"query":    fmt.Sprintf("%s, %s", canonical, info.Country),
			"language": "en",
			"unit":     unit,
		},
		"location": map[string]any{
			"name":            cityName,
			"country":         info.Country,
			"region":          info.Region,
			"lat":             info.Lat,
			"lon":             info.Lon,
			"timezone_id":     info.TimezoneID,
			"localtime":       now.Format("2006-01-02 15:04"),
			"localtime_epoch": now.Unix(),
			"utc_offset":      utcOffset,
		},
		"current": map[string]any{
			"observation_time":     now.Format("03:04 PM"),
			"temperature":          g.rng.Intn(46) - 10,
			"weather_code":         cond.Code,
			"weather_descriptions": []string{cond.Description},
			"wind_speed":           g.rng.Intn(51),
			"wind_degree":          g.rng.Intn(360),
			"wind_dir":             windDirections[g.rng.Intn(len(windDirections))],
			"pressure":             980 + g.rng.Intn(61),
			"precip":               g.rng.Intn(21),
			"humidity":             30 + g.rng.Intn(71),
			"cloudcover":           g.rng.Intn(101),
			"feelslike":            g.rng.Intn(46) - 10,
			"uv_index":             1 + g.rng.Intn(11),
			"visibility":           1 + g.rng.Intn(20),
		},
	}
}

func (g *Generator) lookup(cityName string) (CityInfo, string, bool) {
	for name, info := range g.cities {
		if strings.EqualFold(name, cityName) {
			return info, name, true
		}
	}
	return CityInfo{}, "", false
}
