// Package refresh coordinates credential refresh for an authenticated HTTP client.
//
// A Coordinator guarantees that at most one refresh call is in flight no matter how many
// requests observe an expired access token at the same time. Callers that arrive while a
// cycle runs join its waiter queue and all of them receive that cycle's single outcome:
// either the new access token or the same terminal error.
//
// # Cycle
//
//  1. The first caller moves the coordinator from Idle to InFlight and starts the cycle
//     detached from its own context.
//  2. The cycle reads the refresh token, calls the refresh function under a hard timeout and
//     writes the new pair back to the store.
//  3. On terminal failure the store is cleared and the logout hook runs once.
//  4. The queue is drained atomically with the return to Idle and waiters are released in
//     the order they queued.
//
// # Architecture boundaries
//
// The coordinator never issues the original requests. Eligibility checks and the single
// replay of each request belong to the caller (the authclient package).
//
// # What this package must NOT do
//
//   - Perform HTTP I/O directly. The refresh call is injected.
//   - Expose the refresh state or the waiter queue.
//   - Import authclient.
package refresh
