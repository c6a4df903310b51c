// Package rate throttles outbound login and refresh attempts with fixed-window counters from
// github.com/ulule/limiter.
//
// # Architecture boundaries
//
// The package only answers "may this attempt proceed". What happens to a throttled refresh
// cycle (uniform rejection of its waiters) is decided by the refresh coordinator.
//
// # What this package must NOT do
//
//   - Perform network I/O.
//   - Import authclient or refresh.
package rate
