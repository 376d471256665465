// Package testing provides a standardised conformance test suite for
// implementations of the endpoint.Endpoint interface.
//
// Every endpoint in this repository (memory, badger and redis) runs the same
// suite, so the copy strategies can rely on identical behavior for absent keys,
// wrong types, expiration, dump/restore and scanning. Tests that need a feature
// the endpoint does not report (see endpoint.Feature) are skipped.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t *testing.T) endpoint.Endpoint {
//		ep, err := NewMyEndpoint()
//		require.NoError(t, err)
//		return ep
//	}
//
//	// Running the standard test suite
//	eptesting.RunEndpointTests(t, "MyEndpoint", factory)
//
// Seed writes one key of every supported type and is reused by the strategy
// and runner tests.
package testing
