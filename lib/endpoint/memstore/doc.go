// Package memstore implements an in-memory endpoint.
//
// It is the reference implementation of endpoint.Endpoint and is used as a
// scratch target, as a file backed store (mem:///path/to/file) and by the
// tests of the copy strategies.
//
// Key Components:
//
//   - storeImpl: Holds the shards, the codec used for Dump/Restore and the
//     garbage collector. All operations are safe for concurrent use.
//
//   - Shard: A partition of the key space. Each shard stores its entries in an
//     xsync.MapOf and keeps an expiration queue (util.MapHeap) ordered by the
//     expiration time of the keys. Keys are distributed across shards using
//     util.HashString with a per store seed.
//
//   - Entry: A codec.Record together with its expiration time in unix
//     nanoseconds (0 = no expiration).
//
// Internal Mechanisms:
//
//   - Every write goes through compute, which runs the modification inside
//     xsync.MapOf.Compute so concurrent writers of the same key never lose an
//     update. Collections that become empty are removed, like redis does.
//
//   - Expired entries are invisible to all reads immediately. The garbage
//     collector only frees their memory. It wakes up every GCInterval, pops
//     all due keys from the shard queues and removes them after checking that
//     they were not updated in the meantime.
//
//   - Dump produces codec.Marshal(record), so blobs carry the codec name and
//     version. The dump format family is "kvcopy-<codec>", which lets two
//     memory or badger endpoints using the same codec exchange blobs.
//
//   - Persistence Format: If Options.SnapshotPath is set, the store loads the
//     file on creation and writes it on Close. The file starts with the magic
//     number "KVCOPYMEM\x00" and a version byte, followed by the entry count
//     and for each entry: key, expiration time and the marshalled record.
//     Snapshots are fuzzy, they do not represent a consistent cut of the store.
package memstore
