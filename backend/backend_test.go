package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func init() {
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
}

// sleepRecorder replaces the client's sleep so retry tests run instantly.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestClient(t *testing.T, url string, timeout time.Duration) (*Client, *sleepRecorder) {
	t.Helper()
	c := NewBackendClient(Options{
		APIURL:  url,
		Token:   "hf-secret",
		Timeout: timeout,
	})
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func testRequest() Request {
	return Request{
		Inputs: "hello",
		Parameters: Parameters{
			MaxLength:   100,
			Temperature: 0.7,
			TopP:        0.95,
			DoSample:    true,
		},
	}
}

func TestQuerySendsRequest(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`[{"generated_text":"hi there"}]`))
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv.URL, time.Second)
	resp, err := c.Query(context.Background(), testRequest(), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Shape != ShapeGenerated || resp.Value != "hi there" {
		t.Errorf("resp = %+v", resp)
	}
	if gotAuth != "Bearer hf-secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody["inputs"] != "hello" {
		t.Errorf("inputs = %v", gotBody["inputs"])
	}
	params, _ := gotBody["parameters"].(map[string]any)
	if params["max_length"] != float64(100) || params["temperature"] != 0.7 || params["top_p"] != 0.95 || params["do_sample"] != true {
		t.Errorf("parameters = %v", params)
	}
	if len(rec.waits) != 0 {
		t.Errorf("unexpected waits: %v", rec.waits)
	}
}

func TestQueryRateLimitedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"generated_text":"after wait"}]`))
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv.URL, time.Second)
	resp, err := c.Query(context.Background(), testRequest(), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Value != "after wait" {
		t.Errorf("Value = %q", resp.Value)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(rec.waits) != 1 || rec.waits[0] != 7*time.Second {
		t.Errorf("waits = %v, want [7s]", rec.waits)
	}
}

func TestQueryRateLimitedDefaultWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`["ok"]`))
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv.URL, time.Second)
	if _, err := c.Query(context.Background(), testRequest(), 3); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rec.waits) != 1 || rec.waits[0] != 60*time.Second {
		t.Errorf("waits = %v, want [1m0s]", rec.waits)
	}
}

func TestQueryRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv.URL, time.Second)
	_, err := c.Query(context.Background(), testRequest(), 3)
	if !errors.Is(err, ErrRetriesExceeded) {
		t.Fatalf("err = %v, want ErrRetriesExceeded", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	// No wait after the final attempt.
	if len(rec.waits) != 2 {
		t.Errorf("waits = %v, want 2", rec.waits)
	}
}

func TestQueryTimeoutsExhaustBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv.URL, 50*time.Millisecond)
	_, err := c.Query(context.Background(), testRequest(), 3)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(rec.waits) != 2 || rec.waits[0] != 5*time.Second {
		t.Errorf("waits = %v, want [5s 5s]", rec.waits)
	}
}

func TestQueryTimeoutThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`[{"generated_text":"second try"}]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 50*time.Millisecond)
	resp, err := c.Query(context.Background(), testRequest(), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Value != "second try" {
		t.Errorf("Value = %q", resp.Value)
	}
}

func TestQueryConnectionFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, rec := newTestClient(t, url, time.Second)
	_, err := c.Query(context.Background(), testRequest(), 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRetriesExceeded) {
		t.Errorf("err = %v, want a connection error", err)
	}
	if len(rec.waits) != 1 {
		t.Errorf("waits = %v, want 1", rec.waits)
	}
}

func TestQueryReturnsNonSuccessStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, time.Second)
	resp, err := c.Query(context.Background(), testRequest(), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.Shape != ShapeError || resp.Value != "Model is currently loading" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestQueryUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, time.Second)
	_, err := c.Query(context.Background(), testRequest(), 3)
	if !errors.Is(err, ErrUndecodableBody) {
		t.Fatalf("err = %v, want ErrUndecodableBody", err)
	}
}

func TestQueryContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewBackendClient(Options{APIURL: srv.URL, Token: "t", DefaultRetryAfter: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Query(ctx, testRequest(), 3)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Query did not stop waiting on context cancellation")
	}
}

func TestRetryAfter(t *testing.T) {
	c := NewBackendClient(Options{DefaultRetryAfter: 60 * time.Second, MaxRetryAfter: 90 * time.Second})

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"missing", "", 60 * time.Second},
		{"seconds", "12", 12 * time.Second},
		{"zero", "0", 0},
		{"clamped", "3600", 90 * time.Second},
		{"garbage", "soon", 60 * time.Second},
		{"past date", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := c.retryAfter(h); got != tt.want {
				t.Errorf("retryAfter(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

func TestParametersMarshalExtra(t *testing.T) {
	p := Parameters{MaxLength: 10, Extra: map[string]any{"repetition_penalty": 1.2, "max_length": 999}}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["repetition_penalty"] != 1.2 {
		t.Errorf("extra key missing: %v", got)
	}
	if got["max_length"] != float64(10) {
		t.Errorf("max_length = %v, named field must win", got["max_length"])
	}
}
