// Package jwt reads and issues the JSON Web Tokens exchanged with the proxy-shop API.
//
// Clients only ever inspect tokens: [Inspect] and [ExpiresWithin] read the unverified exp
// claim to schedule proactive refreshes and size storage TTLs. [Manager] issues and verifies
// signed tokens and backs the in-repo fake backend and load tests.
//
// # What this package must NOT do
//
//   - Treat an unverified claim as proof of anything beyond scheduling.
//   - Perform I/O.
package jwt
