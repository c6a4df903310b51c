// Package authclient is the authenticated HTTP client shared by the proxy storefront and
// admin front ends.
//
// A [Client] attaches the stored access token to every request. When a request is refused
// with 401 it waits for a refresh and replays the request once. However many requests fail
// at the same time, exactly one refresh call is made ([refresh.Coordinator]), and every one
// of them observes its outcome: all are replayed with the new token, or all fail with
// [ErrSessionExpired] after the credentials were cleared and the logout hook ran.
//
// Clients are built once with [Builder.Build] and are safe for concurrent use.
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Client], [Builder], [Config], [Request] and
// value types. Flow orchestration, throttling and audit dispatch live under internal/.
// Credential persistence is pluggable through the credentials package.
//
// # What this package must NOT do
//
//   - Retry a request more than once, or retry transport errors.
//   - Start a refresh from a 401 of the login or refresh endpoint.
//   - Send the bearer token to a host other than the configured backend.
package authclient
