// Package credentials holds the access/refresh credential pair and the pluggable stores that
// persist it between requests.
//
// # Strategies
//
//   - [MemoryStore]: process-local pair guarded by a mutex.
//   - [RedisStore]: shared pair in Redis, encoded with the versioned binary codec.
//   - [FileStore]: pair persisted on disk, optionally sealed with a passphrase.
//   - [CookieStore]: pair carried as cookies in an [net/http.CookieJar], for backends that
//     set httpOnly credential cookies themselves.
//
// # Architecture boundaries
//
// This package owns storage and encoding of the pair. Deciding when the pair is written
// (login, refresh, logout) belongs to the client and the refresh coordinator.
//
// # What this package must NOT do
//
//   - Issue HTTP requests.
//   - Import authclient or refresh.
//   - Interpret token contents beyond reading an unverified JWT expiry for TTLs.
package credentials
