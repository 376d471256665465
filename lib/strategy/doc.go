// Package strategy selects and runs the algorithm that copies keys from a
// source endpoint to a destination endpoint, and verifies the result.
//
// Key Components:
//
//   - Strategy: Copy one key, verify one key and report a display name. There
//     are two implementations:
//     1. CommandReplay ("classic", display name "Classic") reads the typed value
//     and expiry at the source and replays the matching writes at the destination.
//     It works with every pair of endpoints.
//     2. BlockTransfer ("new", display name "New") moves a key as one opaque blob
//     using Dump and Restore. It requires compatible endpoints.
//
//   - Factory: Select resolves the requested Name (classic, new or auto) into a
//     Kind using the compatibility probe, and New constructs the strategy of a Kind.
//
//     | requested | compatible | result                   |
//     |-----------|------------|--------------------------|
//     | classic   | not probed | CommandReplay            |
//     | new       | true       | BlockTransfer            |
//     | new       | false      | ErrIncompatibleEndpoints |
//     | auto      | true       | BlockTransfer            |
//     | auto      | false      | CommandReplay            |
//
//   - Compatibility Probe: Two endpoints are compatible if both support
//     FeatureDump and FeatureRestore, both dump formats have the same family and
//     the destination's format version is not older than the source's.
//
//   - Verifier: Embedded by every strategy. Verify reads the type of a key at the
//     source, picks the matching reader, runs it against both endpoints and
//     compares the results, then does the same for the expiry. Verify never
//     fails: errors and panics of the endpoints are captured into Outcome values
//     (see Capture) and compared like ordinary results. All findings are
//     reported as debug traces to the UI:
//     VERIFY: "<key>"
//     BORK: "<key>" has unknown type "<type>"
//     MISMATCH: "<key>" source=<outcome> destination=<outcome>
//
// Comparison rules:
//   - Set members are sorted before comparing, sorted set members are ordered by
//     score (ties by member) and lists keep their order.
//   - Remaining times to live are equal if they differ by at most one second,
//     NoExpiry only equals NoExpiry.
//   - Two raised outcomes are only equal if both errors are *endpoint.Error values
//     with the same code and message.
//
// Options are copied when a strategy is created. The only parameter understood by
// both strategies is "replace" (default true): if false, keys that already exist
// at the destination are skipped.
//
// Strategies are not safe for concurrent use when their endpoints are shared.
// Callers that copy in parallel create one strategy (and endpoint pair) per worker.
package strategy
