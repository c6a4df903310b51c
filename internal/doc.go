// Package internal groups the packages private to authclient.
//
// # Sub-packages
//
//   - audit: asynchronous audit event dispatch and sinks
//   - flows: request, login, refresh-call, verify and logout flows as pure functions over deps
//   - mockapi: an in-process proxy shop backend for tests, the load test and the example
//   - rate: login and refresh throttles
package internal
