package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/proxyhub/authclient"
)

// hopHeaders are owned by the Client and never copied from the wrapped request.
var hopHeaders = []string{"Authorization", "Connection", "Content-Length", "Host"}

// Transport sends requests through Client.Send. Requests must target the Client's base
// URL host.
type Transport struct {
	Client *authclient.Client
}

// NewHTTPClient returns an *http.Client whose requests are authenticated by c.
func NewHTTPClient(c *authclient.Client) *http.Client {
	return &http.Client{Transport: &Transport{Client: c}}
}

// RoundTrip buffers the body so the request can be replayed once after a refresh. Terminal
// authorization failures are returned as errors; every received response, 401 included,
// is returned as a response.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t == nil || t.Client == nil {
		return nil, fmt.Errorf("middleware: transport has no client")
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("middleware: read request body: %w", err)
		}
	}

	header := r.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	req := authclient.NewRequest(r.Method, r.URL.String(), body).WithHeaders(header)

	resp, err := t.Client.Send(r.Context(), req)
	if err != nil {
		return nil, err
	}

	out := &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       r,
	}
	if out.Header == nil {
		out.Header = http.Header{}
	}
	out.Header.Del("Content-Encoding")
	return out, nil
}
