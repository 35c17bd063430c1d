package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcRequest is the wire shape sent to a gateway endpoint.
type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// rpcResponse is the wire shape returned by a gateway endpoint. A
// non-empty Error means the contract call reverted.
type rpcResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// HTTPTransport sends calls as JSON POSTs to a contract gateway.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport. The HTTP client timeout is a
// backstop; the executor's per-call deadline is the effective bound.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Call posts {method, params} to endpoint/call and returns the raw
// result. Classification happens here: transport failures are
// transient, reverts and malformed bodies are invalid responses.
func (t *HTTPTransport) Call(ctx context.Context, endpoint, method string, params ...any) (any, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return nil, &CallError{Kind: KindInvalidResponse, Op: method, Err: err}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint+"/call",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, &CallError{Kind: KindTransient, Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &CallError{Kind: Classify(err), Op: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := KindTransient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = KindInvalidResponse
		}
		return nil, &CallError{
			Kind: kind,
			Op:   method,
			Err:  fmt.Errorf("unexpected status %s from %s", resp.Status, endpoint),
		}
	}

	var parsed rpcResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, &CallError{Kind: KindInvalidResponse, Op: method, Err: err}
	}

	if parsed.Error != "" {
		return nil, &CallError{
			Kind: KindInvalidResponse,
			Op:   method,
			Err:  fmt.Errorf("contract revert: %s", parsed.Error),
		}
	}

	return parsed.Result, nil
}
