// Package flows contains pure-function orchestrators for every Client operation.
//
// Each flow function (RunDispatch, RunRefreshCall, RunLogin, RunVerify, RunLogout) accepts
// a typed dependency struct and returns a result value. The Client stays thin: it owns the
// HTTP client, the credential store and the refresh coordinator, and maps flow results to
// its public errors.
//
// # Architecture boundaries
//
// Flow functions talk to the backend through the injected Doer and to credentials through
// credentials.Store. None of them retries: replay policy lives in the Client and refresh
// coordination in package refresh.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authclient (to avoid import cycles).
//   - Attach a bearer token to the login or refresh call.
package flows
