package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proxyhub/authclient/credentials"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds the refresh call when Deps.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// State is the coordinator's refresh state.
type State int

const (
	Idle State = iota
	InFlight
)

func (s State) String() string {
	if s == InFlight {
		return "in_flight"
	}
	return "idle"
}

// FailureKind classifies how a cycle ended.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoRefreshToken
	FailureRejected
	FailureTimeout
	FailureThrottled
	FailureStore
)

// Terminal reports whether the failure ends the session.
func (k FailureKind) Terminal() bool {
	switch k {
	case FailureNoRefreshToken, FailureRejected, FailureTimeout:
		return true
	default:
		return false
	}
}

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNoRefreshToken:
		return "no_refresh_token"
	case FailureRejected:
		return "rejected"
	case FailureTimeout:
		return "timeout"
	case FailureThrottled:
		return "throttled"
	case FailureStore:
		return "store"
	default:
		return "unknown"
	}
}

// Func exchanges a refresh token for a new pair. A returned pair without a refresh token
// keeps the current one.
type Func func(ctx context.Context, refreshToken string) (credentials.Pair, error)

// LogoutFunc is invoked once per terminal cycle, after the store was cleared, when the store
// held credentials at the start of the cycle.
type LogoutFunc func(ctx context.Context, kind FailureKind)

// Limiter bounds the rate of refresh cycles.
type Limiter interface {
	CheckRefresh(ctx context.Context, key string) error
}

// Observer receives cycle lifecycle notifications. Calls happen outside the coordinator lock.
type Observer interface {
	CycleStarted(id string)
	CycleSettled(id string, waiters int, kind FailureKind, elapsed time.Duration)
	WaiterQueued(id string)
	StaleTokenReused()
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) CycleStarted(string)                                  {}
func (NopObserver) CycleSettled(string, int, FailureKind, time.Duration) {}
func (NopObserver) WaiterQueued(string)                                  {}
func (NopObserver) StaleTokenReused()                                    {}

// Deps captures coordinator dependencies.
type Deps struct {
	Store       credentials.Store
	Refresh     Func
	Logout      LogoutFunc
	Timeout     time.Duration
	Limiter     Limiter
	ThrottleKey string
	Observer    Observer
	Logger      logrus.FieldLogger
}

const (
	// handoffTimeout bounds how long release waits for a waiter to begin its replay.
	handoffTimeout = 5 * time.Second

	persistAttempts = 3
	persistBackoff  = 20 * time.Millisecond
)

type outcome struct {
	token string
	err   error
	// ack is closed by the waiter once its replay has started.
	ack chan struct{}
}

type waiter struct {
	seq  uint64
	ch   chan outcome
	gone chan struct{}
}

// result is what one cycle produced. from is the access token the cycle replaced.
type result struct {
	token string
	from  string
	kind  FailureKind
	err   error
}

// Turn is a waiter's share of a settled cycle.
type Turn struct {
	Token string
	begin func()
}

// Begin marks the start of the caller's replay and lets the next waiter in line proceed.
// It is safe to call more than once and on a zero Turn.
func (t Turn) Begin() {
	if t.begin != nil {
		t.begin()
	}
}

// Coordinator runs single-flight refresh cycles. It is safe for concurrent use.
type Coordinator struct {
	deps Deps

	mu      sync.Mutex
	state   State
	cycleID string
	queue   []waiter
	seq     uint64
	// replaced and current describe the last successful cycle: a request rejected with
	// replaced is answered with current.
	replaced string
	current  string

	// onRelease observes release order in tests.
	onRelease func(seq uint64)
}

// New validates deps and returns an idle Coordinator.
func New(deps Deps) (*Coordinator, error) {
	if deps.Store == nil || deps.Refresh == nil {
		return nil, ErrInvalidDeps
	}
	if deps.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout", ErrInvalidDeps)
	}
	if deps.Timeout == 0 {
		deps.Timeout = DefaultTimeout
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		deps.Logger = l
	}
	if deps.ThrottleKey == "" {
		deps.ThrottleKey = "default"
	}
	return &Coordinator{deps: deps}, nil
}

// Await returns an access token newer than usedToken, the token a request was rejected
// with. It is AwaitTurn for callers that do not care about replay order.
func (c *Coordinator) Await(ctx context.Context, usedToken string) (string, error) {
	turn, err := c.AwaitTurn(ctx, usedToken)
	turn.Begin()
	return turn.Token, err
}

// AwaitTurn is Await for callers replaying a request. Waiters of one cycle are handed their
// turns in arrival order, and the next turn is only handed out once the caller has called
// Begin or given up waiting.
//
// When the store already holds a different token, or the last cycle replaced usedToken,
// that token is returned directly. Otherwise the caller joins the running cycle or starts
// one. Cancelling ctx stops the wait but never the cycle.
func (c *Coordinator) AwaitTurn(ctx context.Context, usedToken string) (Turn, error) {
	if pair, err := c.deps.Store.Get(ctx); err == nil && pair.AccessToken != "" && pair.AccessToken != usedToken {
		c.deps.Observer.StaleTokenReused()
		return Turn{Token: pair.AccessToken}, nil
	}

	w := waiter{ch: make(chan outcome, 1), gone: make(chan struct{})}

	c.mu.Lock()
	if c.state == Idle && c.current != "" && usedToken == c.replaced {
		// A cycle settled while the store was being read.
		token := c.current
		c.mu.Unlock()
		c.deps.Observer.StaleTokenReused()
		return Turn{Token: token}, nil
	}
	c.seq++
	w.seq = c.seq
	c.queue = append(c.queue, w)
	start := c.state == Idle
	if start {
		c.state = InFlight
		c.cycleID = uuid.NewString()
	}
	id := c.cycleID
	c.mu.Unlock()

	if start {
		c.deps.Observer.CycleStarted(id)
		go c.runCycle(context.WithoutCancel(ctx), id)
	} else {
		c.deps.Observer.WaiterQueued(id)
	}

	select {
	case out := <-w.ch:
		turn := Turn{Token: out.token}
		if out.ack != nil {
			turn.begin = sync.OnceFunc(func() { close(out.ack) })
		}
		return turn, out.err
	case <-ctx.Done():
		close(w.gone)
		return Turn{}, ctx.Err()
	}
}

// Forget drops what the last cycle replaced. Call it when the session ends outside a cycle.
func (c *Coordinator) Forget() {
	c.mu.Lock()
	c.replaced, c.current = "", ""
	c.mu.Unlock()
}

func (c *Coordinator) runCycle(ctx context.Context, id string) {
	started := time.Now()
	log := c.deps.Logger.WithField("cycle_id", id)
	log.Debug("refresh cycle started")

	res := c.refresh(ctx, log)
	elapsed := time.Since(started)

	queue := c.drain(res)
	waiters := len(queue)
	c.deps.Observer.CycleSettled(id, waiters, res.kind, elapsed)
	c.release(queue, outcome{token: res.token, err: res.err})

	fields := logrus.Fields{"waiters": waiters, "elapsed": elapsed}
	if res.err != nil {
		log.WithFields(fields).WithField("failure", res.kind.String()).WithError(res.err).Warn("refresh cycle failed")
		return
	}
	log.WithFields(fields).Debug("refresh cycle succeeded")
}

func (c *Coordinator) refresh(ctx context.Context, log logrus.FieldLogger) result {
	if c.deps.Limiter != nil {
		if err := c.deps.Limiter.CheckRefresh(ctx, c.deps.ThrottleKey); err != nil {
			return result{kind: FailureThrottled, err: fmt.Errorf("%w: %w", ErrRefreshThrottled, err)}
		}
	}

	pair, err := c.deps.Store.Get(ctx)
	if err != nil {
		return result{kind: FailureStore, err: fmt.Errorf("read credentials: %w", err)}
	}
	if !pair.HasRefresh() {
		return c.terminate(ctx, log, pair, FailureNoRefreshToken, ErrNoRefreshToken)
	}

	next, err := c.call(ctx, pair.RefreshToken)
	if err != nil {
		kind := FailureRejected
		if errors.Is(err, ErrRefreshTimeout) {
			kind = FailureTimeout
		}
		return c.terminate(ctx, log, pair, kind, err)
	}

	if next.AccessToken == "" {
		// Cookie-backed stores receive the new pair from the response itself.
		current, err := c.deps.Store.Get(ctx)
		if err == nil && current.AccessToken != "" && current.AccessToken != pair.AccessToken {
			return result{token: current.AccessToken, from: pair.AccessToken}
		}
		return c.terminate(ctx, log, pair, FailureRejected,
			fmt.Errorf("%w: response carried no access token", ErrRefreshRejected))
	}

	merged := pair.Merge(next)
	if err := c.persist(ctx, log, merged); err != nil {
		return result{kind: FailureStore, err: fmt.Errorf("%w: %w", ErrPersistFailed, err)}
	}
	return result{token: merged.AccessToken, from: pair.AccessToken}
}

// persist writes the refreshed pair, retrying a failed write before giving up.
func (c *Coordinator) persist(ctx context.Context, log logrus.FieldLogger, pair credentials.Pair) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = c.deps.Store.Set(ctx, pair); err == nil {
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("refresh: persisting new credentials failed")
		if attempt == persistAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * persistBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// call runs the refresh function under the timeout. The result is abandoned if the function
// ignores its context.
func (c *Coordinator) call(ctx context.Context, refreshToken string) (credentials.Pair, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.deps.Timeout)
	defer cancel()

	type result struct {
		pair credentials.Pair
		err  error
	}
	done := make(chan result, 1)
	go func() {
		pair, err := c.deps.Refresh(callCtx, refreshToken)
		done <- result{pair: pair, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.pair, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return credentials.Pair{}, fmt.Errorf("%w: %w", ErrRefreshTimeout, r.err)
		}
		if errors.Is(r.err, ErrRefreshRejected) {
			return credentials.Pair{}, r.err
		}
		return credentials.Pair{}, fmt.Errorf("%w: %w", ErrRefreshRejected, r.err)
	case <-callCtx.Done():
		return credentials.Pair{}, fmt.Errorf("%w after %s", ErrRefreshTimeout, c.deps.Timeout)
	}
}

func (c *Coordinator) terminate(
	ctx context.Context,
	log logrus.FieldLogger,
	pair credentials.Pair,
	kind FailureKind,
	cause error,
) result {
	if err := c.deps.Store.Clear(ctx); err != nil {
		log.WithError(err).Warn("refresh: clearing credentials failed")
	}
	if !pair.Empty() && c.deps.Logout != nil {
		c.deps.Logout(ctx, kind)
	}
	return result{kind: kind, err: fmt.Errorf("%w: %w", ErrSessionExpired, cause)}
}

// drain takes the queue together with the return to Idle and records what a successful
// cycle replaced. A 401 arriving after this point starts a new cycle or takes the
// stale-token path.
func (c *Coordinator) drain(res result) []waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.queue
	c.queue = nil
	c.state = Idle
	c.cycleID = ""
	switch {
	case res.err == nil:
		c.replaced, c.current = res.from, res.token
	case res.kind.Terminal():
		c.replaced, c.current = "", ""
	}
	return queue
}

// release hands out in FIFO order. After a success each waiter must begin its replay, or
// stop waiting, before the next one is released.
func (c *Coordinator) release(queue []waiter, out outcome) {
	for _, w := range queue {
		if c.onRelease != nil {
			c.onRelease(w.seq)
		}
		if out.err != nil {
			w.ch <- out
			continue
		}
		ack := make(chan struct{})
		w.ch <- outcome{token: out.token, ack: ack}
		timer := time.NewTimer(handoffTimeout)
		select {
		case <-ack:
		case <-w.gone:
		case <-timer.C:
			c.deps.Logger.WithField("waiter", w.seq).Warn("refresh: waiter did not begin its replay in time")
		}
		timer.Stop()
	}
}
