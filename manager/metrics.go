package manager

import (
	"sync"
	"time"

	"askbot/logging"
)

var log = logging.GetLogger()

// Metrics holds the queue counters for one worker pool.
type Metrics struct {
	Name            string
	QueueSize       int
	ProcessingCount int
	LastLogTime     time.Time

	queueSizeChanged       bool
	processingCountChanged bool
	mu                     sync.Mutex
	closed                 chan struct{}
	closeOnce              sync.Once
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	QueueSize       int
	ProcessingCount int
}

// NewMetrics creates the metrics for the named pool.
func NewMetrics(name string) *Metrics {
	return &Metrics{
		Name:   name,
		closed: make(chan struct{}),
	}
}

// Monitor logs changes at most once per logEvery until Stop is called.
func (m *Metrics) Monitor(logEvery time.Duration) {
	ticker := time.NewTicker(500 * time.Millisecond) // Check twice every second
	defer ticker.Stop()

	for {
		select {
		case <-m.closed:
			return
		case <-ticker.C:
			m.mu.Lock()
			currentTime := time.Now()
			if (m.queueSizeChanged || m.processingCountChanged) &&
				currentTime.Sub(m.LastLogTime) >= logEvery {
				log.Infof("Queue: %s | Queued: %d | Processing: %d",
					m.Name, m.QueueSize, m.ProcessingCount)
				m.LastLogTime = currentTime
				m.resetChangeFlags()
			}
			m.mu.Unlock()
		}
	}
}

// Stop ends the monitor goroutine.
func (m *Metrics) Stop() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{QueueSize: m.QueueSize, ProcessingCount: m.ProcessingCount}
}

func (m *Metrics) IncrementQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueSize++
	m.queueSizeChanged = true
}

func (m *Metrics) DecrementQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueueSize > 0 {
		m.QueueSize--
		m.queueSizeChanged = true
	}
}

func (m *Metrics) IncrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessingCount++
	m.processingCountChanged = true
}

func (m *Metrics) DecrementProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProcessingCount > 0 {
		m.ProcessingCount--
		m.processingCountChanged = true
	}
}

func (m *Metrics) resetChangeFlags() {
	m.queueSizeChanged = false
	m.processingCountChanged = false
}
