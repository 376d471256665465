// Package endpoint defines the contract kvcopy uses to talk to a key-value
// store. An endpoint is one handle (usually one connection) to a store; it
// can be the source or the destination of a copy run.
//
// The package focuses on:
//   - A typed interface (Endpoint) covering the five supported value types
//     (string, hash, zset, set, list) together with their expiry
//   - Capability probing through Feature bit flags and DumpFormat
//   - Unified error reporting through the Error type and its RetCode
//
// Key Components:
//
//   - Reader / Writer: The typed read and write operations. Readers are used by
//     the verifier and by the command replay strategy, writers only by the
//     command replay strategy.
//
//   - Dump / Restore: An atomic serialize-at-source, materialize-at-destination
//     pair used by the block transfer strategy. A blob is opaque and only valid
//     between endpoints whose DumpFormat families match (see DumpFormat.CanRestoreFrom).
//
//   - Error System: A structured error type with codes. The sentinel values
//     ErrNotFound, ErrWrongType, ErrUnsupported and ErrInvalidOperation match any
//     Error with the same code via errors.Is.
//
// Implementations:
//
//   - Memory Endpoint (memstore): an in-process store, safe for concurrent use.
//     Available in the "github.com/ValentinKolb/kvcopy/lib/endpoint/memstore" package.
//
//   - Badger Endpoint (badgerstore): a persistent store on top of BadgerDB.
//     Available in the "github.com/ValentinKolb/kvcopy/lib/endpoint/badgerstore" package.
//
//   - Redis Endpoint (redisstore): an adapter for redis servers using go-redis.
//     Available in the "github.com/ValentinKolb/kvcopy/lib/endpoint/redisstore" package.
//
// All implementations are checked by the shared suite in
// "github.com/ValentinKolb/kvcopy/lib/endpoint/testing".
package endpoint
