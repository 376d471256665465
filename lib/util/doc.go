// Package util provides small building blocks shared by the endpoint
// implementations.
//
// The package contains:
//   - mapheap: A generic priority queue keyed by an arbitrary comparable type,
//     used to schedule key expirations
//   - functions: Seed generation and a seeded FNV-1a string hash used for shard selection
package util
