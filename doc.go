// Package rcache is a versioned key-value cache client for Redis-compatible
// stores with pluggable routing and an optional fallback cache.
//
// Components:
//   - store.Store: one backend connection (go-redis per node, or in-memory).
//   - router.Router: picks the connection for a key. Single, MasterReplica
//     (writes to the first node, reads from a random replica) or Ring
//     (consistent hashing with {hash tags}).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - version.Source: the default key version, static or shared via Redis.
//   - Secondary[V]: the cache served while the primary is unreachable,
//     usually a ProviderCache over Ristretto, BigCache or another Redis.
//
// Keys:
//
//	<prefix>:<version>:<key>
//
// Invalidate a whole namespace by bumping the version; move one entry to a
// new version (keeping its TTL) with IncrVersion.
//
// Fallback:
//
//	NORMAL --connectivity error--> FALLBACK(0) --call--> FALLBACK(1) ... FALLBACK(n)
//	FALLBACK(n) --next call probes the primary--> NORMAL on success, FALLBACK(0) on failure
//
// n is Options.FallbackCalls (20 by default). Only connectivity errors move
// the state; any other error is returned to the caller unchanged.
package rcache
