package queue

import (
	"context"
	"time"

	"askbot/backend"
)

// Backend performs one blocking inference call.
type Backend interface {
	Query(ctx context.Context, req backend.Request, maxRetries int) (*backend.Response, error)
}

// Request is an inference call waiting for a worker.
type Request struct {
	ID           string
	Payload      backend.Request
	MaxRetries   int
	ResponseChan chan RequestResult
	Context      context.Context
	EnqueuedAt   time.Time
}

// RequestResult represents the outcome of processing a request.
type RequestResult struct {
	Response *backend.Response
	Error    error
}
