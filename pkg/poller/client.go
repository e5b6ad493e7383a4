// Package poller periodically captures fork-choice dumps from a running
// beacon node and appends them to a snapshot store.
//
// A [Client] fetches and validates one dump; a [Poller] drives it on a
// fixed interval. Fetch failures are logged and skipped so a restarting or
// syncing node never kills the capture loop.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tbenr/protovis/pkg/httputil"
	"github.com/tbenr/protovis/pkg/source"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNetwork is returned for HTTP failures (timeouts, connection errors,
	// non-200 responses).
	ErrNetwork = errors.New("network error")

	// ErrBadDump is returned when the endpoint responds but the body does not
	// normalize as a fork-choice dump for the configured format.
	ErrBadDump = errors.New("invalid fork-choice response")
)

// DefaultPath returns the debug endpoint path each client exposes its
// protoarray on. The caller joins it with the node's base URL.
func DefaultPath(f source.Format) string {
	switch f {
	case source.FormatTeku:
		return "/teku/v1/debug/beacon/protoarray"
	case source.FormatLighthouse:
		return "/lighthouse/proto_array"
	case source.FormatPrysm:
		return "/eth/v1alpha1/debug/forkchoice"
	default:
		return ""
	}
}

// Client fetches fork-choice dumps from one beacon-node endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	format   source.Format
	adapter  source.Adapter
}

// NewClient creates a client for the given endpoint URL and client format.
func NewClient(endpoint string, f source.Format) (*Client, error) {
	adapter, err := source.ForFormat(f)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:     &http.Client{Timeout: httpTimeout},
		endpoint: endpoint,
		format:   f,
		adapter:  adapter,
	}, nil
}

// Endpoint returns the URL the client polls.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch retrieves one dump and returns the raw record array.
//
// Connection errors and 5xx responses are retried with backoff; other
// failures abort. Endpoints that wrap the record array in an object (the
// records live under the format's records field) are unwrapped, and the
// result is validated by normalizing it once before it is returned.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	records, err := c.extract(body)
	if err != nil {
		return nil, err
	}
	if _, err := source.Normalize(records, c.format); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// extract unwraps an object response down to its record array. A body that
// already is an array passes through untouched.
func (c *Client) extract(body []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body, nil
	}
	records, ok := fields[c.adapter.RecordsField()]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q field", ErrBadDump, c.adapter.RecordsField())
	}
	return records, nil
}
