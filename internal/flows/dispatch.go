package flows

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/proxyhub/authclient/credentials"
)

// Outbound is one transmission of a request descriptor.
type Outbound struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	RequestID string
	// Token replaces the stored access token when set.
	Token string
	// Written, when set, is called once the request has been written to the connection,
	// or once dispatch gave up before that.
	Written func()
}

// DispatchFailureKind classifies dispatch failures.
type DispatchFailureKind int

const (
	DispatchFailureNone DispatchFailureKind = iota
	DispatchFailureStore
	DispatchFailureBuild
	DispatchFailureTransport
	DispatchFailureBody
)

// DispatchResult carries the response of one transmission. Status is zero when no response
// was received.
type DispatchResult struct {
	Failure   DispatchFailureKind
	Err       error
	Status    int
	Header    http.Header
	Body      []byte
	UsedToken string
}

// DispatchDeps captures dispatch flow dependencies.
type DispatchDeps struct {
	HTTP             Doer
	Store            credentials.Store
	UserAgent        string
	RequestTimeout   time.Duration
	MaxResponseBytes int64
}

// RunDispatch sends out once with the stored access token as bearer credential, or
// unauthenticated when none is stored.
func RunDispatch(ctx context.Context, out Outbound, deps DispatchDeps) DispatchResult {
	if out.Written != nil {
		written := sync.OnceFunc(out.Written)
		defer written()
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { written() },
		})
	}

	pair := credentials.Pair{AccessToken: out.Token}
	if out.Token == "" {
		var err error
		pair, err = deps.Store.Get(ctx)
		if err != nil {
			return DispatchResult{Failure: DispatchFailureStore, Err: fmt.Errorf("read credentials: %w", err)}
		}
	}

	if deps.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.RequestTimeout)
		defer cancel()
	}

	var body io.Reader = http.NoBody
	if len(out.Body) > 0 {
		body = bytes.NewReader(out.Body)
	}
	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, body)
	if err != nil {
		return DispatchResult{Failure: DispatchFailureBuild, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, values := range out.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if out.RequestID != "" {
		req.Header.Set("X-Request-ID", out.RequestID)
	}
	if deps.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", deps.UserAgent)
	}
	if pair.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	} else {
		req.Header.Del("Authorization")
	}

	resp, err := deps.HTTP.Do(req)
	if err != nil {
		return DispatchResult{Failure: DispatchFailureTransport, Err: err, UsedToken: pair.AccessToken}
	}
	respBody, err := readBody(resp, deps.MaxResponseBytes)
	if err != nil {
		return DispatchResult{
			Failure:   DispatchFailureBody,
			Err:       err,
			Status:    resp.StatusCode,
			Header:    resp.Header,
			UsedToken: pair.AccessToken,
		}
	}
	return DispatchResult{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      respBody,
		UsedToken: pair.AccessToken,
	}
}
