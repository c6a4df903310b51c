// Package middleware adapts an authclient.Client to plain net/http.
//
// # Adapters
//
//   - [Transport] is an http.RoundTripper, so code built on *http.Client (generated API
//     clients, SDKs) gets the same refresh-and-replay recovery as Client.Do.
//   - [RequireSession] guards handlers of a storefront server: without stored credentials
//     the visitor is redirected to the login page.
//
// Neither adapter reads or refreshes tokens itself; both delegate to the Client.
package middleware
