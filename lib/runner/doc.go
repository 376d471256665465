// Package runner copies or verifies many keys between two endpoints in parallel.
//
// A run opens one source and one destination endpoint per worker through the
// given endpoint.Opener functions, resolves the strategy once on the first pair
// and gives every worker its own strategy instance. A producer either scans the
// source with Config.Pattern (using an additional source endpoint) or emits
// Config.Keys, optionally throttled to Config.Rate keys per second. The workers
// copy each key and verify it if requested.
//
// Failures of single keys never abort a run. They are counted, logged as
// warnings and listed (up to 100 entries) in the Report. A run is aborted if an
// endpoint cannot be opened, the strategy cannot be selected, the scan fails or
// the context is cancelled.
//
// Every run has a unique id and its own metric set:
//
//	kvcopy_keys_processed_total
//	kvcopy_keys_total{result="copied|skipped|failed|verified|mismatched"}
//	kvcopy_key_duration_seconds (histogram)
//
// which can be exported in the Prometheus text format with Runner.WriteMetrics.
// The Report can be written as YAML.
package runner
