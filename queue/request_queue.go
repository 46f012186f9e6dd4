package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"askbot/backend"
	"askbot/logging"
	"askbot/manager"
)

var log = logging.GetLogger()

var (
	// ErrQueueFull is returned when every buffered slot is taken.
	ErrQueueFull = errors.New("too many requests in queue, try again later")
	// ErrQueueClosed is returned once Shutdown has been called.
	ErrQueueClosed = errors.New("request queue is shut down")
)

// RequestQueue runs inference calls on a fixed set of worker goroutines so
// callers never perform the blocking network I/O themselves.
type RequestQueue struct {
	queue     chan *Request
	backend   Backend
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	metrics   *manager.Metrics
}

// NewRequestQueue starts workers goroutines draining a buffer of size
// requests.
func NewRequestQueue(b Backend, workers, size int) *RequestQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	rq := &RequestQueue{
		queue:   make(chan *Request, size),
		backend: b,
		closed:  make(chan struct{}),
		metrics: manager.NewMetrics("inference"),
	}

	rq.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go rq.process()
	}
	go rq.metrics.Monitor(time.Second)

	log.Infof("Started inference queue with %d workers, capacity %d", workers, size)
	return rq
}

// Enqueue hands req to the workers without blocking.
func (rq *RequestQueue) Enqueue(req *Request) error {
	select {
	case <-rq.closed:
		return ErrQueueClosed
	default:
	}

	req.EnqueuedAt = time.Now()
	rq.metrics.IncrementQueue()
	select {
	case rq.queue <- req:
		return nil
	default:
		rq.metrics.DecrementQueue()
		return ErrQueueFull
	}
}

// Query runs payload on a worker and waits for the result, the caller's
// context or shutdown, whichever comes first.
func (rq *RequestQueue) Query(ctx context.Context, payload backend.Request, maxRetries int) (*backend.Response, error) {
	id := logging.RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logging.WithRequestID(ctx, id)
	}
	req := &Request{
		ID:           id,
		Payload:      payload,
		MaxRetries:   maxRetries,
		ResponseChan: make(chan RequestResult, 1),
		Context:      ctx,
	}
	if err := rq.Enqueue(req); err != nil {
		return nil, err
	}
	log.WithField("request_id", req.ID).Debug("Request queued")

	select {
	case res := <-req.ResponseChan:
		return res.Response, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rq.closed:
		return nil, ErrQueueClosed
	}
}

// Metrics returns the queue counters.
func (rq *RequestQueue) Metrics() manager.Snapshot {
	return rq.metrics.Snapshot()
}

// Shutdown stops accepting requests and waits for in-flight calls to return.
func (rq *RequestQueue) Shutdown() {
	rq.closeOnce.Do(func() {
		close(rq.closed)
	})
	rq.wg.Wait()
	rq.metrics.Stop()
}

// process pulls requests until shutdown.
func (rq *RequestQueue) process() {
	defer rq.wg.Done()
	for {
		select {
		case <-rq.closed:
			return
		case req := <-rq.queue:
			rq.metrics.DecrementQueue()
			rq.handle(req)
		}
	}
}

func (rq *RequestQueue) handle(req *Request) {
	entry := log.WithField("request_id", req.ID)

	// The caller gave up while the request was waiting.
	if err := req.Context.Err(); err != nil {
		entry.Debugf("Dropping request canceled after %s in queue", time.Since(req.EnqueuedAt))
		req.ResponseChan <- RequestResult{Error: err}
		return
	}

	rq.metrics.IncrementProcessing()
	defer rq.metrics.DecrementProcessing()
	defer func() {
		if r := recover(); r != nil {
			entry.Errorf("Recovered panic in inference worker: %v", r)
			req.ResponseChan <- RequestResult{Error: fmt.Errorf("inference worker panic: %v", r)}
		}
	}()

	start := time.Now()
	resp, err := rq.backend.Query(req.Context, req.Payload, req.MaxRetries)
	if err != nil {
		entry.Warnf("Inference failed after %s: %v", time.Since(start), err)
	} else {
		entry.Debugf("Inference finished in %s (waited %s in queue)", time.Since(start), start.Sub(req.EnqueuedAt))
	}
	req.ResponseChan <- RequestResult{Response: resp, Error: err}
}
