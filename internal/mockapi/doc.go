// Package mockapi is an in-process fake of the proxy shop backend.
//
// It implements the auth endpoints (login, rotating refresh, verify) with real HS256 JWTs
// and a few protected shop endpoints, plus knobs to expire access tokens, slow down or
// reject refreshes, and count refresh calls. Tests, the load generator and the storefront
// example run against it.
package mockapi
