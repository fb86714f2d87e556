package device

import (
	"sync"
	"time"
)

// healthTracker is a circuit breaker over the device session, adapted from
// a per-endpoint health tracker pattern, narrowed to the
// single device session a Client owns. It never blocks or retries a call;
// it only annotates TransportError with whether the device looks
// disconnected, and exposes a snapshot for diagnostics/metrics export.
type healthTracker struct {
	mu sync.Mutex

	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	consecutiveFail int
	consecutiveOK   int
	circuitOpen     bool
	lastSuccess     time.Time
	lastFailure     time.Time

	failureThreshold  int
	successThreshold  int
	circuitOpenWindow time.Duration
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		failureThreshold:  3,
		successThreshold:  2,
		circuitOpenWindow: 30 * time.Second,
	}
}

func (h *healthTracker) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCalls++
	h.successfulCalls++
	h.consecutiveFail = 0
	h.consecutiveOK++
	h.lastSuccess = time.Now()

	if h.circuitOpen && h.consecutiveOK >= h.successThreshold {
		h.circuitOpen = false
	}
}

func (h *healthTracker) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCalls++
	h.failedCalls++
	h.consecutiveOK = 0
	h.consecutiveFail++
	h.lastFailure = time.Now()

	if h.consecutiveFail >= h.failureThreshold {
		h.circuitOpen = true
	}
}

// looksDisconnected reports whether the circuit is open and the open
// window has not yet elapsed.
func (h *healthTracker) looksDisconnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.circuitOpen {
		return false
	}
	return time.Since(h.lastFailure) < h.circuitOpenWindow
}

// HealthSnapshot is a point-in-time read of the device session's health.
type HealthSnapshot struct {
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	CircuitOpen     bool
	LastSuccess     time.Time
	LastFailure     time.Time
}

func (h *healthTracker) snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		TotalCalls:      h.totalCalls,
		SuccessfulCalls: h.successfulCalls,
		FailedCalls:     h.failedCalls,
		CircuitOpen:     h.circuitOpen,
		LastSuccess:     h.lastSuccess,
		LastFailure:     h.lastFailure,
	}
}
