package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"askbot/logging"
)

var log = logging.GetLogger()

var (
	// ErrTimeout is returned when the final attempt times out.
	ErrTimeout = errors.New("inference request timed out")
	// ErrRetriesExceeded is returned when every attempt was rate limited.
	ErrRetriesExceeded = errors.New("max retries exceeded")
)

const (
	DefaultMaxRetries        = 3
	defaultTimeout           = 30 * time.Second
	defaultBackoff           = 5 * time.Second
	defaultRetryAfter        = 60 * time.Second
	maxResponseBytes   int64 = 4 << 20
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	APIURL            string
	Token             string
	Timeout           time.Duration
	Backoff           time.Duration
	DefaultRetryAfter time.Duration
	MaxRetryAfter     time.Duration
	HTTPClient        *http.Client
}

// Client talks to the remote text-generation endpoint.
type Client struct {
	apiURL            string
	token             string
	httpClient        *http.Client
	backoff           time.Duration
	defaultRetryAfter time.Duration
	maxRetryAfter     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBackendClient creates a Client for the endpoint in opts.
func NewBackendClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout, // Per-attempt timeout
		}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	retryAfter := opts.DefaultRetryAfter
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	maxRetryAfter := opts.MaxRetryAfter
	if maxRetryAfter <= 0 {
		maxRetryAfter = retryAfter
	}
	return &Client{
		apiURL:            strings.TrimSpace(opts.APIURL),
		token:             strings.TrimSpace(opts.Token),
		httpClient:        httpClient,
		backoff:           backoff,
		defaultRetryAfter: retryAfter,
		maxRetryAfter:     maxRetryAfter,
		sleep:             sleepWithContext,
	}
}

// Query posts req and returns the decoded response. Rate limiting (429) is
// waited out and timeouts or connection faults are retried, up to maxRetries
// attempts in total. Any other status is returned as-is for the caller to
// interpret.
func (c *Client) Query(ctx context.Context, req Request, maxRetries int) (*Response, error) {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		last := attempt == maxRetries

		status, headers, respBody, err := c.post(ctx, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if isTimeout(err) {
				log.Warnf("Inference attempt %d/%d timed out: %v", attempt, maxRetries, err)
				if last {
					return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, maxRetries)
				}
			} else {
				log.Warnf("Inference attempt %d/%d failed: %v", attempt, maxRetries, err)
				if last {
					return nil, fmt.Errorf("inference request failed: %w", err)
				}
			}
			if err := c.sleep(ctx, c.backoff); err != nil {
				return nil, err
			}
			continue
		}

		if status == http.StatusTooManyRequests {
			wait := c.retryAfter(headers)
			log.Warnf("Inference attempt %d/%d rate limited, retry after %s", attempt, maxRetries, wait)
			if last {
				break
			}
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		return DecodeResponse(status, respBody)
	}

	return nil, ErrRetriesExceeded
}

// post performs a single attempt and reads the whole body, so the client
// timeout covers the body as well as the headers.
func (c *Client) post(ctx context.Context, body []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

// retryAfter reads the Retry-After header, either delta seconds or an HTTP
// date, and clamps it to maxRetryAfter.
func (c *Client) retryAfter(headers http.Header) time.Duration {
	wait := c.defaultRetryAfter
	if v := strings.TrimSpace(headers.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(v); err == nil {
			wait = time.Until(at)
			if wait < 0 {
				wait = 0
			}
		}
	}
	if wait > c.maxRetryAfter {
		wait = c.maxRetryAfter
	}
	return wait
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
