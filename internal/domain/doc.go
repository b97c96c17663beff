// Package domain models city weather observations and the slowly-changing
// city-weather dimension built from them.
//
// # Data Flow
//
// The upstream observation API reports current conditions per city. The ETL
// service lands each reading in the raw warehouse table, then reconciles the
// dimension on every run:
//
//	raw observations → Deduplicate → Reconcile → dimension change set
//
// # Deduplication
//
// The raw table can receive the same (city, timestamp) reading more than once,
// for example when a run is retried after a partial failure. Deduplication
// keeps exactly one row per (city, timestamp) pair: the one with the smallest
// insertion sequence number, i.e. the earliest write wins.
//
// # Content Hashing
//
// Change detection uses a SHA-256 fingerprint over the mutable attributes
// (city, temperature, description, wind speed), joined with "|" and with nil
// values rendered as empty strings. The observation timestamp and ID are
// deliberately excluded so that an unchanged reading repeated at a later time
// hashes identically and does not spawn a new dimension version. See
// [ContentHash].
//
// # Type-2 Dimension Versioning
//
// Each city has at most one open dimension row (IsCurrent true, ValidTo set
// to [SentinelValidTo]). A hash-differing observation with a timestamp at or
// after the open row's closes the open row and inserts a new one; an equal
// hash is a no-op, which makes whole-run retries idempotent. Observations
// that arrive out of order (a differing hash but an older timestamp than the
// open row) are rejected rather than inserted, so the one-current-row
// invariant can never be violated by late data. See [Reconcile].
package domain
