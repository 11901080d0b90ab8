package actioncable

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// monitoredConnection is the slice of Connection that ConnectionMonitor
// needs. Kept as an interface so the monitor's stale/backoff policy can be
// exercised in tests without a real socket.
type monitoredConnection interface {
	reopen()
	isOpen() bool
	isActive() bool
}

// ConnectionMonitor detects a stale or silently dropped Connection and
// triggers a reopen, with a logarithmic backoff and page-visibility
// awareness. One ConnectionMonitor is owned by exactly one Connection.
type ConnectionMonitor struct {
	conn       monitoredConnection
	logger     *zap.Logger
	visibility VisibilityNotifier

	mu                sync.Mutex
	reconnectAttempts int
	startedAt         time.Time
	stoppedAt         time.Time
	pingedAt          time.Time
	disconnectedAt    time.Time

	stopCh     chan struct{}
	wg         sync.WaitGroup
	unsubVisib func()
}

// NewConnectionMonitor creates a monitor for conn. If visibility is nil, a
// no-op notifier is used (the common case for a headless process).
func NewConnectionMonitor(conn monitoredConnection, logger *zap.Logger, visibility VisibilityNotifier) *ConnectionMonitor {
	if visibility == nil {
		visibility = noopVisibility{}
	}
	return &ConnectionMonitor{
		conn:       conn,
		logger:     logger,
		visibility: visibility,
	}
}

// IsRunning reports whether the monitor has been started and not since
// stopped.
func (m *ConnectionMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.startedAt.IsZero() && m.stoppedAt.IsZero()
}

// Start is idempotent: starting an already-running monitor is a no-op.
func (m *ConnectionMonitor) Start() {
	m.mu.Lock()
	if !m.startedAt.IsZero() && m.stoppedAt.IsZero() {
		m.mu.Unlock()
		return
	}
	m.startedAt = time.Now()
	m.stoppedAt = time.Time{}
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.unsubVisib = m.visibility.Subscribe(func() {
		go m.onVisible(stopCh)
	})

	m.wg.Add(1)
	go m.pollLoop(stopCh)

	m.logger.Debug("connection-monitor-started")
}

// Stop is idempotent: stopping an already-stopped monitor is a no-op. Stop
// blocks until the poll goroutine has exited, so a following Start can never
// race with a still-unwinding previous poll loop (at most one poll timer is
// ever armed).
func (m *ConnectionMonitor) Stop() {
	m.mu.Lock()
	if m.startedAt.IsZero() || !m.stoppedAt.IsZero() {
		m.mu.Unlock()
		return
	}
	m.stoppedAt = time.Now()
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()

	if m.unsubVisib != nil {
		m.unsubVisib()
		m.unsubVisib = nil
	}

	m.logger.Debug("connection-monitor-stopped")
}

// RecordPing marks that a server ping was just received. Called on every
// server "ping" frame.
func (m *ConnectionMonitor) RecordPing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingedAt = time.Now()
}

// RecordConnect resets the backoff state. Called on server "welcome".
func (m *ConnectionMonitor) RecordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectAttempts = 0
	m.pingedAt = time.Now()
	m.disconnectedAt = time.Time{}
}

// RecordDisconnect marks the moment the underlying socket closed. Called on
// socket "close".
func (m *ConnectionMonitor) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectedAt = time.Now()
}

// ReconnectAttempts returns the current attempt counter, for tests and
// metrics.
func (m *ConnectionMonitor) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempts
}

func (m *ConnectionMonitor) pollLoop(stopCh chan struct{}) {
	defer m.wg.Done()

	for {
		interval := m.pollInterval()
		timer := time.NewTimer(interval)

		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			m.reconnectIfStale()
		}
	}
}

// pollInterval returns the next poll delay: multiplier * ln(attempts+1),
// clamped to [min, max] and expressed in whole milliseconds, matching the
// documented round(clamp(...) * 1000) formula.
func (m *ConnectionMonitor) pollInterval() time.Duration {
	m.mu.Lock()
	attempts := m.reconnectAttempts
	m.mu.Unlock()

	seconds := pollIntervalMult * math.Log(float64(attempts)+1)
	seconds = clamp(seconds, pollIntervalMin.Seconds(), pollIntervalMax.Seconds())
	ms := math.Round(seconds * 1000)
	return time.Duration(ms) * time.Millisecond
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stale reports whether no ping has arrived within staleThreshold of
// pingedAt, or of startedAt if no ping has ever arrived.
func (m *ConnectionMonitor) stale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleLocked()
}

func (m *ConnectionMonitor) staleLocked() bool {
	reference := m.pingedAt
	if reference.IsZero() {
		reference = m.startedAt
	}
	if reference.IsZero() {
		return false
	}
	return time.Since(reference) > staleThreshold
}

// reconnectIfStale is the poll-tick policy: do nothing unless stale; if
// stale, bump the attempt counter and reopen unless the connection already
// knows it is down and within its own grace period.
func (m *ConnectionMonitor) reconnectIfStale() {
	m.mu.Lock()
	if !m.staleLocked() {
		m.mu.Unlock()
		return
	}
	m.reconnectAttempts++
	skip := !m.disconnectedAt.IsZero() && time.Since(m.disconnectedAt) < staleThreshold
	m.mu.Unlock()

	ReconnectAttemptsTotal.Inc()

	if skip {
		m.logger.Debug("stale-reconnect-skipped-already-down")
		return
	}

	m.logger.Info("stale-connection-reopening")
	m.conn.reopen()
}

// onVisible runs on a page/process foreground transition, debounced, and
// reopens the connection if it looks stale or isn't open. stopCh is the
// generation the notifier was subscribed under, so a debounce that fires
// after Stop() (or after a subsequent Start()) is a no-op instead of acting
// on a monitor instance it no longer owns.
func (m *ConnectionMonitor) onVisible(stopCh chan struct{}) {
	timer := time.NewTimer(visibilityDebounce)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stopCh:
		return
	}

	m.mu.Lock()
	current := m.stopCh
	m.mu.Unlock()
	if current != stopCh {
		return
	}

	if m.stale() || !m.conn.isOpen() {
		m.logger.Info("visibility-triggered-reopen")
		m.conn.reopen()
	}
}
