package authclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Attempt numbers the transmissions of one Request.
type Attempt uint8

const (
	// FirstAttempt is the original transmission.
	FirstAttempt Attempt = iota
	// ReplayAttempt is the single transmission allowed after a refresh.
	ReplayAttempt
)

func (a Attempt) String() string {
	if a == ReplayAttempt {
		return "replay"
	}
	return "first"
}

// Request is an immutable request descriptor. Methods returning a Request return a
// modified copy.
type Request struct {
	method  string
	target  string
	header  http.Header
	body    []byte
	attempt Attempt
	id      string
}

// NewRequest returns a first-attempt descriptor. target is a path resolved against the
// configured base URL, or an absolute URL on the same host.
func NewRequest(method, target string, body []byte) Request {
	return Request{
		method: method,
		target: target,
		header: http.Header{},
		body:   bytes.Clone(body),
		id:     uuid.NewString(),
	}
}

// NewJSONRequest encodes v as the request body and sets the JSON content type.
func NewJSONRequest(method, target string, v any) (Request, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("%w: encode body: %w", ErrInvalidRequest, err)
	}
	return NewRequest(method, target, raw).WithHeader("Content-Type", "application/json"), nil
}

// WithHeader returns a copy with header key set to value.
func (r Request) WithHeader(key, value string) Request {
	out := r
	out.header = r.header.Clone()
	if out.header == nil {
		out.header = http.Header{}
	}
	out.header.Set(key, value)
	return out
}

// WithHeaders returns a copy with every value of h added to the headers.
func (r Request) WithHeaders(h http.Header) Request {
	out := r
	out.header = r.header.Clone()
	if out.header == nil {
		out.header = http.Header{}
	}
	for k, values := range h {
		for _, v := range values {
			out.header.Add(k, v)
		}
	}
	return out
}

// Replay returns the replay descriptor for r. It reports false when r already is a replay,
// so a third transmission can never be built.
func (r Request) Replay() (Request, bool) {
	if r.attempt != FirstAttempt {
		return Request{}, false
	}
	out := r
	out.attempt = ReplayAttempt
	return out, true
}

// Method is the HTTP method.
func (r Request) Method() string { return r.method }

// Target is the path or absolute URL the request was built with.
func (r Request) Target() string { return r.target }

// Attempt tells a first transmission from its replay.
func (r Request) Attempt() Attempt { return r.attempt }

// ID is the X-Request-ID shared by every attempt.
func (r Request) ID() string { return r.id }

// Header returns a copy of the request headers.
func (r Request) Header() http.Header { return r.header.Clone() }

// Body returns a copy of the request body.
func (r Request) Body() []byte { return bytes.Clone(r.body) }

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempt    Attempt
	RequestID  string
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx backend answer. The backend's failure body is
// {"detail": ..., "error_code": ...}.
type APIError struct {
	StatusCode int
	Detail     string
	ErrorCode  string
	Body       []byte
}

func (e *APIError) Error() string {
	switch {
	case e.ErrorCode != "" && e.Detail != "":
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	var payload struct {
		Detail    json.RawMessage `json:"detail"`
		ErrorCode string          `json:"error_code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}
	e.ErrorCode = payload.ErrorCode
	if len(payload.Detail) == 0 {
		return e
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		e.Detail = detail
	} else {
		// Validation errors carry a structured detail.
		e.Detail = string(payload.Detail)
	}
	return e
}
