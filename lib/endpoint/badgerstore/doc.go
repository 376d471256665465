// Package badgerstore implements an endpoint backed by an embedded BadgerDB
// database (github.com/dgraph-io/badger/v4).
//
// Every key stores the marshalled codec.Record of its value, so Dump is a
// plain read and Restore a validated write. The dump format family is
// "kvcopy-<codec>" like the memory endpoint, which makes block transfers
// between the two possible.
//
// Expiration is delegated to badger (entry TTL, second precision). Collection
// writers read, modify and rewrite the record in one transaction and keep the
// expiration of the key. Conflicting transactions are retried.
//
// For persistent databases a background goroutine triggers the value log GC
// every GCInterval.
package badgerstore
