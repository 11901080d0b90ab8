package actioncable

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultDialTimeout bounds a single dial attempt inside open().
const defaultDialTimeout = 10 * time.Second

var wsSchemePattern = regexp.MustCompile(`(?i)^wss?:`)

// URLResolver produces the consumer's target URL. It is asked again on
// every resolution, not cached, so a caller can hand in a closure that
// rotates an auth token or rereads configuration — the sum-type "string |
// () => string" from the design notes collapses naturally into "always a
// func" in Go.
type URLResolver func() (string, error)

// StaticURL wraps a fixed URL string as a URLResolver.
func StaticURL(raw string) URLResolver {
	return func() (string, error) { return raw, nil }
}

// resolveWSURL normalizes raw into a ws(s):// URL. If raw already has a
// ws/wss scheme it is returned unchanged. Otherwise its scheme is rewritten
// (http->ws, https->wss, no scheme->ws) the way the source's URL helper
// rewrites a same-origin href — except there is no document to resolve a
// relative URL against in a Go process, so raw must already be absolute or
// scheme-relative.
func resolveWSURL(raw string) (string, error) {
	if wsSchemePattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse consumer url %q: %w", raw, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported consumer url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Consumer is the top-level client facade: it owns exactly one Connection
// and one Subscriptions registry, which reference each other back through
// the Consumer.
type Consumer struct {
	resolver URLResolver
	logger   *zap.Logger

	connection    *Connection
	subscriptions *Subscriptions

	mu     sync.Mutex
	closed bool
}

// Option configures a Consumer at construction time.
type Option func(*consumerOptions)

type consumerOptions struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	visibility  VisibilityNotifier
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *consumerOptions) { o.logger = logger }
}

// WithDialTimeout overrides the default dial handshake timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *consumerOptions) { o.dialTimeout = d }
}

// WithVisibilityNotifier supplies a VisibilityNotifier for hosts that have a
// foreground/background distinction. Defaults to a no-op.
func WithVisibilityNotifier(v VisibilityNotifier) Option {
	return func(o *consumerOptions) { o.visibility = v }
}

// NewConsumer creates a Consumer that resolves its URL via resolver on every
// connect/reopen. The Connection and Subscriptions registry are created
// eagerly but no socket is opened until Connect (or a Subscriptions.Create)
// is called.
func NewConsumer(resolver URLResolver, opts ...Option) *Consumer {
	cfg := consumerOptions{
		logger:      zap.NewNop(),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Consumer{resolver: resolver, logger: cfg.logger}
	c.connection = newConnection(c, cfg.logger, cfg.dialTimeout, cfg.visibility)
	c.subscriptions = newSubscriptions(c, cfg.logger)
	return c
}

// CreateConsumer is the programmatic entry point matching the source's
// createConsumer(url?): if rawURL is empty, fallback (typically backed by
// config.GetConfig("url")) is consulted; if that also yields nothing, the
// connection falls back to the default mount path.
func CreateConsumer(rawURL string, fallback func(name string) (string, bool), opts ...Option) *Consumer {
	if rawURL == "" {
		if v, ok := fallback("url"); ok {
			rawURL = v
		} else {
			rawURL = DefaultMountPath
		}
	}
	return NewConsumer(StaticURL(rawURL), opts...)
}

// Subscriptions returns the registry application code uses to create and
// manage channel subscriptions.
func (c *Consumer) Subscriptions() *Subscriptions { return c.subscriptions }

// resolvedURL asks the resolver for the current URL and normalizes it.
func (c *Consumer) resolvedURL() (string, error) {
	raw, err := c.resolver()
	if err != nil {
		return "", fmt.Errorf("resolve consumer url: %w", err)
	}
	return resolveWSURL(raw)
}

// Send serializes data as JSON and transmits it over the connection. Returns
// false without error if the connection is not open.
func (c *Consumer) Send(data any) bool {
	return c.connection.send(data)
}

// Connect opens the connection. Equivalent to connection.open(). Returns
// false without dialing if the consumer has already been disconnected.
func (c *Consumer) Connect() bool {
	if c.isClosed() {
		return false
	}
	return c.connection.open()
}

// Disconnect closes the connection and stops the monitor, with no further
// reconnect attempts. Permanent: Subscriptions.Create afterward fails with
// ErrClosed, and Connect/EnsureActiveConnection return false without dialing.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.connection.close(false)
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// EnsureActiveConnection opens the connection if it is not already active.
func (c *Consumer) EnsureActiveConnection() bool {
	return c.ensureActiveConnection()
}

func (c *Consumer) ensureActiveConnection() bool {
	if c.isClosed() || c.connection.isActive() {
		return false
	}
	return c.connection.open()
}
