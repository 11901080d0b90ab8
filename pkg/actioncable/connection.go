package actioncable

import (
	"fmt"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connState mirrors the symbolic WebSocket readyState vocabulary from the
// spec: connecting, open, closing, closed.
type connState int

const (
	stateClosed connState = iota
	stateConnecting
	stateOpen
	stateClosing
)

// Connection owns the WebSocket, translates inbound frames into registry
// calls, and exposes the send primitive the rest of the client uses. Exactly
// one Connection is owned by a Consumer for its lifetime; the underlying
// socket is replaced across reopens, but the Connection and its
// ConnectionMonitor are not.
type Connection struct {
	consumer *Consumer
	logger   *zap.Logger
	monitor  *ConnectionMonitor
	dialer   websocket.Dialer

	mu           sync.RWMutex
	ws           *websocket.Conn
	state        connState
	protocol     string
	disconnected bool
	generation   uuid.UUID

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// newConnection creates a Connection for consumer. disconnected starts true
// per the data-model invariant; the monitor is created but not started until
// the first successful open().
func newConnection(consumer *Consumer, logger *zap.Logger, dialTimeout time.Duration, visibility VisibilityNotifier) *Connection {
	c := &Connection{
		consumer:     consumer,
		logger:       logger,
		disconnected: true,
		dialer: websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			Subprotocols:     SupportedProtocols,
		},
	}
	c.monitor = NewConnectionMonitor(c, logger, visibility)
	return c
}

// isOpen reports whether the underlying socket is in the open state.
func (c *Connection) isOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateOpen
}

// isActive reports whether the socket is open or in the process of opening.
func (c *Connection) isActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateOpen || c.state == stateConnecting
}

// getProtocol returns the negotiated subprotocol, or ("", false) if there is
// no socket yet.
func (c *Connection) getProtocol() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ws == nil {
		return "", false
	}
	return c.protocol, true
}

// isProtocolSupported reports whether the negotiated protocol is anything
// other than the explicit unsupported sentinel.
func (c *Connection) isProtocolSupported() bool {
	protocol, ok := c.getProtocol()
	if !ok {
		return false
	}
	return protocol != ProtocolUnsupported
}

// send serializes data as JSON and writes it to the socket if open. It never
// raises: a send while not open simply returns false, and the reload that
// follows the next welcome makes up for anything lost.
func (c *Connection) send(data any) bool {
	if !c.isOpen() {
		c.logger.Debug("send-skipped", zap.Error(ErrNotOpen))
		return false
	}

	b, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("send-marshal-failed", zap.Error(err))
		return false
	}

	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil {
		return false
	}

	c.writeMu.Lock()
	err = ws.WriteMessage(websocket.TextMessage, b)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("send-write-failed", zap.Error(err))
		return false
	}
	return true
}

// open dials a fresh socket against the consumer's URL. Idempotent while
// already active: returns false without dialing again. Returns true once a
// new socket has been installed and its read loop and monitor started. If
// the server negotiated the unsupported sentinel protocol, the new socket is
// closed with reconnect disallowed and open still returns true, without
// starting a read loop or the monitor.
func (c *Connection) open() bool {
	c.mu.Lock()
	if c.state == stateOpen || c.state == stateConnecting {
		c.mu.Unlock()
		c.logger.Debug("open-skipped-already-active")
		return false
	}
	c.state = stateConnecting
	gen := uuid.New()
	c.generation = gen
	c.mu.Unlock()

	url, err := c.consumer.resolvedURL()
	if err != nil {
		c.logger.Error("open-url-resolution-failed", zap.Error(err))
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()
		return false
	}

	var ws *websocket.Conn
	dialErr := retry.Do(func() error {
		conn, _, dialErr := c.dialer.Dial(url, nil)
		if dialErr != nil {
			DialFailuresTotal.Inc()
			return fmt.Errorf("dial: %w", dialErr)
		}
		ws = conn
		return nil
	},
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("dial-retry", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if dialErr != nil {
		c.logger.Error("open-dial-failed", zap.Error(dialErr))
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()
		return false
	}

	c.mu.Lock()
	c.ws = ws
	c.protocol = ws.Subprotocol()
	c.state = stateOpen
	c.disconnected = false
	c.mu.Unlock()

	c.logger.Info("connection-opened", zap.String("protocol", c.protocol))
	ConnectionState.Set(1)

	if !c.isProtocolSupported() {
		c.logger.Error("unsupported-protocol-negotiated", zap.Error(ErrUnsupportedProtocol), zap.String("protocol", c.protocol))
		c.close(false)
		return true
	}

	c.wg.Add(1)
	go c.readLoop(gen, ws)

	c.monitor.Start()

	return true
}

// close requests the underlying socket close. If allowReconnect is false the
// monitor is stopped first so no further reopen attempts happen.
func (c *Connection) close(allowReconnect bool) {
	if !allowReconnect {
		c.monitor.Stop()
	}

	if !c.isActive() {
		return
	}

	c.mu.Lock()
	c.state = stateClosing
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return
	}

	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = ws.Close()
}

// reopen attempts to close the current socket (swallowing any error) and, in
// all cases, schedules a fresh open() after reopenDelay. If the connection
// isn't active to begin with, it opens synchronously instead. This always
// re-opens after the delay even when the close attempt itself failed/errored
// (see DESIGN.md's resolution of the spec's open question). The delayed
// open() is dropped if the monitor has been stopped in the meantime (a
// close(false), e.g. from Consumer.Disconnect), so no reconnect follows it.
func (c *Connection) reopen() {
	if c.isActive() {
		func() {
			defer func() { _ = recover() }()
			c.close(true)
		}()
		time.AfterFunc(reopenDelay, func() {
			if !c.monitor.IsRunning() {
				return
			}
			c.open()
		})
		return
	}
	c.open()
}

// readLoop reads frames from ws until it errors or the socket is replaced.
// gen pins this goroutine to the socket generation it was spawned for: once
// the Connection moves on to a different socket, a late-arriving read from
// this one is dropped instead of mutating state for a connection that has
// already been superseded.
func (c *Connection) readLoop(gen uuid.UUID, ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.currentGeneration() == gen {
				c.onClose()
			}
			return
		}

		if c.currentGeneration() != gen {
			return
		}

		c.dispatch(data)
	}
}

func (c *Connection) currentGeneration() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// dispatch parses one inbound frame and routes it to the subscriptions
// registry or the monitor. All dispatch for a given socket happens on this
// single goroutine, so handlers are never preempted mid-dispatch.
func (c *Connection) dispatch(data []byte) {
	start := time.Now()
	defer func() { DispatchLatencySeconds.Observe(time.Since(start).Seconds()) }()

	if !c.isProtocolSupported() {
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("inbound-frame-parse-failed", zap.Error(err))
		return
	}

	frameType := frame.Type
	if frameType == "" {
		frameType = "message"
	}
	FramesReceivedTotal.WithLabelValues(frameType).Inc()

	switch frame.Type {
	case TypeWelcome:
		c.monitor.RecordConnect()
		c.consumer.subscriptions.reload()
	case TypeDisconnect:
		c.logger.Warn("server-disconnect", zap.String("reason", frame.Reason), zap.Bool("reconnect", frame.Reconnect))
		c.close(frame.Reconnect)
	case TypePing:
		c.monitor.RecordPing()
	case TypeConfirmSubscription:
		c.consumer.subscriptions.notifyByIdentifier(frame.Identifier, callbackConnected)
	case TypeRejectSubscription:
		c.consumer.subscriptions.reject(frame.Identifier)
	default:
		c.consumer.subscriptions.notifyByIdentifier(frame.Identifier, callbackReceived, frame.Message)
	}
}

// onClose handles a real socket-close event: deduplicates consecutive
// closes via the disconnected flag, and fans out "disconnected" exactly
// once per open/close cycle.
func (c *Connection) onClose() {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	c.state = stateClosed
	c.mu.Unlock()

	ConnectionState.Set(0)
	c.monitor.RecordDisconnect()

	willRetry := c.monitor.IsRunning()
	c.logger.Info("connection-closed", zap.Bool("will-attempt-reconnect", willRetry))

	c.consumer.subscriptions.notifyAll(callbackDisconnected, map[string]any{
		"willAttemptReconnect": willRetry,
	})
}
