package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/proxyhub/authclient/credentials"
	"github.com/proxyhub/authclient/internal/audit"
	"github.com/proxyhub/authclient/internal/flows"
	"github.com/proxyhub/authclient/jwt"
	"github.com/proxyhub/authclient/refresh"
	"github.com/sirupsen/logrus"
)

// LogoutReason says why the session ended.
type LogoutReason string

const (
	LogoutExplicit        LogoutReason = "explicit"
	LogoutRefreshRejected LogoutReason = "refresh_rejected"
	LogoutRefreshTimeout  LogoutReason = "refresh_timeout"
	LogoutNoRefreshToken  LogoutReason = "no_refresh_token"
	LogoutReplayRejected  LogoutReason = "replay_rejected"
)

// LogoutFunc is the application's logout side effect, typically a redirect to an
// unauthenticated entry point. It runs after credentials were cleared and must not issue
// authenticated requests through the Client.
type LogoutFunc func(ctx context.Context, reason LogoutReason)

// SessionInfo describes the stored credentials without exposing them.
type SessionInfo struct {
	Authenticated   bool
	HasRefreshToken bool
	Subject         string
	AccessExpiresAt time.Time
}

// VerifyResult is the answer of the verify endpoint.
type VerifyResult struct {
	Valid  bool
	Fields map[string]any
}

// Client sends authenticated requests and recovers from expired access tokens with one
// shared refresh per expiry. It is safe for concurrent use.
type Client struct {
	config     Config
	baseURL    *url.URL
	loginURL   *url.URL
	refreshURL *url.URL
	verifyURL  *url.URL

	http        *http.Client
	store       credentials.Store
	flows       flows.Service
	coordinator *refresh.Coordinator
	logout      LogoutFunc

	logger  logrus.FieldLogger
	metrics *Metrics
	audit   *audit.Dispatcher

	closed atomic.Bool
}

// Do sends req and returns its 2xx response. Any other status is returned as *APIError.
//
// A 401 on the first attempt of a request to a non-auth endpoint is recovered by waiting
// for a refresh and replaying req exactly once. Transport errors are returned as-is and
// never trigger a refresh.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if !flows.Success(resp.StatusCode) {
		return nil, newAPIError(resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// Send is Do without status mapping: every received response is returned, whatever its
// status. Terminal authorization failures are still returned as errors.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if req.method == "" || req.target == "" {
		return nil, fmt.Errorf("%w: method and target are required", ErrInvalidRequest)
	}
	target, err := c.resolve(req.target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { c.metrics.Observe(MetricRequestLatency, time.Since(start)) }()

	eligible := c.refreshable(target)
	if eligible && c.config.Refresh.ProactiveLeeway > 0 {
		if err := c.refreshIfExpiring(ctx); err != nil {
			return nil, err
		}
	}

	res := c.send(ctx, req, target, refresh.Turn{})
	if res.Err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, target.Path, res.Err)
	}
	if res.Status != http.StatusUnauthorized {
		return toResponse(req, res), nil
	}

	c.metrics.Inc(MetricUnauthorizedObserved)
	replay, ok := req.Replay()
	if !eligible || !ok {
		return toResponse(req, res), nil
	}

	turn, err := c.coordinator.AwaitTurn(ctx, res.UsedToken)
	if err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricReplay)
	res = c.send(ctx, replay, target, turn)
	if res.Err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, target.Path, res.Err)
	}
	if res.Status == http.StatusUnauthorized {
		return nil, c.replayRejected(ctx, replay, target, res)
	}
	return toResponse(replay, res), nil
}

// Get is shorthand for Do with a GET request.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, target, nil))
}

// PostJSON is shorthand for Do with a JSON POST request.
func (c *Client) PostJSON(ctx context.Context, target string, v any) (*Response, error) {
	req, err := NewJSONRequest(http.MethodPost, target, v)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Login exchanges an access code for credentials and stores them.
func (c *Client) Login(ctx context.Context, accessCode string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	res := c.flows.Login(ctx, accessCode)
	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		c.metrics.Inc(MetricLoginSuccess)
		c.emit(ctx, AuditEvent{EventType: AuditLoginSucceeded, Success: true, Status: res.Status})
		c.logger.Info("login succeeded")
		return nil
	case flows.LoginFailureRateLimited:
		c.metrics.Inc(MetricLoginRateLimited)
		err = fmt.Errorf("%w: %w", ErrLoginRateLimited, res.Err)
	case flows.LoginFailureStatus:
		err = newAPIError(res.Status, res.Body)
	case flows.LoginFailureNoToken:
		err = ErrLoginNoToken
	default:
		err = fmt.Errorf("login: %w", res.Err)
	}

	c.metrics.Inc(MetricLoginFailure)
	c.emit(ctx, AuditEvent{EventType: AuditLoginFailed, Status: res.Status, Error: err.Error()})
	c.logger.WithError(err).Warn("login failed")
	return err
}

// Verify asks the backend whether the current access token is valid. A 401 here does not
// start a refresh.
func (c *Client) Verify(ctx context.Context) (VerifyResult, error) {
	if c.closed.Load() {
		return VerifyResult{}, ErrClientClosed
	}
	c.metrics.Inc(MetricRequestSent)
	res := c.flows.Verify(ctx)
	if res.Dispatch.Failure == flows.DispatchFailureTransport {
		c.metrics.Inc(MetricRequestTransportError)
	}
	if res.Err != nil {
		return VerifyResult{}, fmt.Errorf("verify: %w", res.Err)
	}
	if !flows.Success(res.Dispatch.Status) {
		return VerifyResult{}, newAPIError(res.Dispatch.Status, res.Dispatch.Body)
	}
	return VerifyResult{Valid: res.Valid, Fields: res.Fields}, nil
}

// Logout clears the credentials and runs the logout hook. Logging out an already empty
// session is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	res := c.flows.Logout(ctx)
	if res.Err != nil {
		return res.Err
	}
	c.coordinator.Forget()
	if !res.Cleared {
		return nil
	}
	c.metrics.Inc(MetricLogoutExplicit)
	c.emit(ctx, AuditEvent{EventType: AuditLogoutExplicit, Reason: string(LogoutExplicit), Success: true})
	c.logger.Info("logged out")
	if c.logout != nil {
		c.logout(ctx, LogoutExplicit)
	}
	return nil
}

// Session reports what is stored. Token claims are read without verification.
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	pair, err := c.store.Get(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	info := SessionInfo{
		Authenticated:   pair.AccessToken != "",
		HasRefreshToken: pair.HasRefresh(),
	}
	if claims, err := jwt.Inspect(pair.AccessToken); err == nil {
		info.Subject = claims.Subject
		info.AccessExpiresAt = claims.ExpiresAt
	}
	return info, nil
}

// HTTPClient returns the underlying HTTP client, cookie jar included.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Metrics returns the live metrics for exporters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events the dispatcher could not buffer. It
// reads MetricAuditDropped and stays zero while metrics are disabled.
func (c *Client) AuditDropped() uint64 {
	return c.metrics.Value(MetricAuditDropped)
}

// Close stops the audit dispatcher. Later calls fail with ErrClientClosed.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.audit.Close()
}

// send transmits req once. A replay carries its turn: the next replay of the same cycle
// starts after this one is on the wire.
func (c *Client) send(ctx context.Context, req Request, target *url.URL, turn refresh.Turn) flows.DispatchResult {
	c.metrics.Inc(MetricRequestSent)
	out := flows.Outbound{
		Method:    req.method,
		URL:       target.String(),
		Header:    req.header,
		Body:      req.body,
		RequestID: req.id,
		Token:     turn.Token,
	}
	if turn.Token != "" {
		out.Written = turn.Begin
	}
	res := c.flows.Dispatch(ctx, out)
	if res.Failure == flows.DispatchFailureTransport {
		c.metrics.Inc(MetricRequestTransportError)
	}
	return res
}

func (c *Client) refreshIfExpiring(ctx context.Context) error {
	pair, err := c.store.Get(ctx)
	if err != nil || !jwt.ExpiresWithin(pair.AccessToken, c.config.Refresh.ProactiveLeeway, time.Now()) {
		return nil
	}
	c.metrics.Inc(MetricProactiveRefresh)
	if _, err := c.coordinator.Await(ctx, pair.AccessToken); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		// The request still goes out and may be recovered after a 401.
		c.logger.WithError(err).Debug("proactive refresh failed")
	}
	return nil
}

func (c *Client) replayRejected(ctx context.Context, replay Request, target *url.URL, res flows.DispatchResult) error {
	apiErr := newAPIError(res.Status, res.Body)
	c.metrics.Inc(MetricReplayRejected)
	c.emit(ctx, AuditEvent{
		EventType: AuditReplayRejected,
		RequestID: replay.id,
		Method:    replay.method,
		Path:      target.Path,
		Status:    res.Status,
	})
	c.logger.WithFields(logrus.Fields{"request_id": replay.id, "path": target.Path}).Warn("replayed request rejected")

	if !c.config.Refresh.LogoutOnReplayRejected {
		return fmt.Errorf("%w: %w", ErrReplayUnauthorized, apiErr)
	}
	c.coordinator.Forget()
	if out := c.flows.Logout(ctx); out.Err != nil {
		c.logger.WithError(out.Err).Warn("clearing credentials after rejected replay failed")
	} else if out.Cleared {
		c.forcedLogout(ctx, LogoutReplayRejected)
	}
	return fmt.Errorf("%w: %w: %w", ErrSessionExpired, ErrReplayUnauthorized, apiErr)
}

// onTerminalRefresh runs after the coordinator cleared credentials.
func (c *Client) onTerminalRefresh(ctx context.Context, kind refresh.FailureKind) {
	c.forcedLogout(ctx, logoutReasonFor(kind))
}

func (c *Client) forcedLogout(ctx context.Context, reason LogoutReason) {
	c.metrics.Inc(MetricLogoutForced)
	c.emit(ctx, AuditEvent{EventType: AuditLogoutForced, Reason: string(reason)})
	c.logger.WithField("reason", reason).Warn("session terminated")
	if c.logout != nil {
		c.logout(ctx, reason)
	}
}

func logoutReasonFor(kind refresh.FailureKind) LogoutReason {
	switch kind {
	case refresh.FailureTimeout:
		return LogoutRefreshTimeout
	case refresh.FailureNoRefreshToken:
		return LogoutNoRefreshToken
	default:
		return LogoutRefreshRejected
	}
}

// resolve maps a request target onto the base URL. Absolute targets must stay on the
// backend host so the bearer token never leaves it.
func (c *Client) resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if u.IsAbs() {
		if u.Scheme != c.baseURL.Scheme || u.Host != c.baseURL.Host {
			return nil, fmt.Errorf("%w: %s is not on the backend host", ErrInvalidRequest, u.Host)
		}
		return u, nil
	}
	out := c.baseURL.JoinPath(u.Path)
	out.RawQuery = u.RawQuery
	return out, nil
}

// refreshable reports whether a 401 from target may start a refresh. The login and refresh
// endpoints never do.
func (c *Client) refreshable(target *url.URL) bool {
	p := path.Clean("/" + target.Path)
	return p != path.Clean(c.loginURL.Path) && p != path.Clean(c.refreshURL.Path)
}

func (c *Client) emit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	c.audit.Emit(ctx, event)
}

// tryEmit is emit for the refresh cycle, which must not wait on the audit buffer while
// waiters are queued.
func (c *Client) tryEmit(event AuditEvent) {
	if c.audit == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	c.audit.TryEmit(event)
}

func (c *Client) auditDropped(event AuditEvent) {
	c.metrics.Inc(MetricAuditDropped)
	c.logger.WithField("event_type", event.EventType).Debug("audit event dropped")
}

func toResponse(req Request, res flows.DispatchResult) *Response {
	return &Response{
		StatusCode: res.Status,
		Header:     res.Header,
		Body:       res.Body,
		Attempt:    req.attempt,
		RequestID:  req.id,
	}
}

func uuidString() string {
	return uuid.NewString()
}

// clientObserver feeds coordinator notifications into metrics, audit and logs.
type clientObserver struct {
	c *Client
}

func (o clientObserver) CycleStarted(id string) {
	o.c.metrics.Inc(MetricRefreshCycleStarted)
	o.c.tryEmit(AuditEvent{EventType: AuditRefreshStarted, CycleID: id})
}

func (o clientObserver) CycleSettled(id string, waiters int, kind refresh.FailureKind, elapsed time.Duration) {
	o.c.metrics.Observe(MetricRefreshLatency, elapsed)
	meta := map[string]string{"waiters": fmt.Sprint(waiters), "elapsed": elapsed.String()}

	switch kind {
	case refresh.FailureNone:
		o.c.metrics.Inc(MetricRefreshSuccess)
		o.c.tryEmit(AuditEvent{EventType: AuditRefreshSucceeded, CycleID: id, Success: true, Metadata: meta})
		return
	case refresh.FailureTimeout:
		o.c.metrics.Inc(MetricRefreshTimeout)
		o.c.metrics.Inc(MetricRefreshFailure)
	case refresh.FailureThrottled:
		o.c.metrics.Inc(MetricRefreshRateLimited)
	default:
		o.c.metrics.Inc(MetricRefreshFailure)
	}
	o.c.tryEmit(AuditEvent{EventType: AuditRefreshFailed, CycleID: id, Reason: kind.String(), Metadata: meta})
}

func (o clientObserver) WaiterQueued(string) {
	o.c.metrics.Inc(MetricRefreshWaiterQueued)
}

func (o clientObserver) StaleTokenReused() {
	o.c.metrics.Inc(MetricStaleTokenReplay)
}
