package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// VerifyResult carries the verify endpoint answer.
type VerifyResult struct {
	Dispatch DispatchResult
	Valid    bool
	Fields   map[string]any
	Err      error
}

// VerifyDeps captures verify flow dependencies.
type VerifyDeps struct {
	Dispatch  DispatchDeps
	URL       string
	RequestID func() string
}

// RunVerify asks the backend whether the current access token is valid. It is
// informational only: a 401 here never starts a refresh.
func RunVerify(ctx context.Context, deps VerifyDeps) VerifyResult {
	out := Outbound{
		Method: http.MethodPost,
		URL:    deps.URL,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
	if deps.RequestID != nil {
		out.RequestID = deps.RequestID()
	}

	res := RunDispatch(ctx, out, deps.Dispatch)
	if res.Err != nil || !Success(res.Status) {
		return VerifyResult{Dispatch: res, Err: res.Err}
	}

	fields := map[string]any{}
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &fields); err != nil {
			return VerifyResult{Dispatch: res, Err: fmt.Errorf("decode verify response: %w", err)}
		}
	}
	valid, _ := fields["valid"].(bool)
	return VerifyResult{Dispatch: res, Valid: valid, Fields: fields}
}
