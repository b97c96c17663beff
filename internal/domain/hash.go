package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// hashSeparator joins the fingerprinted fields. It must never appear in a
// stringified numeric field, which keeps the concatenation unambiguous.
const hashSeparator = "|"

// ContentHash fingerprints the mutable attributes of an observation: city,
// temperature, weather description, and wind speed. Nil fields render as
// empty strings so hash equality is stable across re-runs regardless of how
// nulls round-trip through storage. Timestamp and ID are excluded on purpose:
// an unchanged reading repeated at a different time must hash identically.
func ContentHash(obs Observation) string {
	fields := []string{
		obs.City,
		floatField(obs.Temperature),
		stringField(obs.Description),
		floatField(obs.WindSpeed),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, hashSeparator)))
	return hex.EncodeToString(sum[:])
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func stringField(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
