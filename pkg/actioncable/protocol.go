// Package actioncable implements the client half of a bidirectional pub/sub
// protocol multiplexed over a single WebSocket: a Connection, the
// ConnectionMonitor that keeps it alive, and the Subscriptions registry that
// multiplexes channel subscriptions over it.
package actioncable

import (
	"time"

	json "github.com/goccy/go-json"
)

// Subprotocols, in preference order, offered during the WebSocket handshake.
// The server may echo back the sentinel unsupported protocol instead of
// negotiating the JSON grammar, in which case the connection is unusable.
const (
	ProtocolV1JSON      = "actioncable-v1-json"
	ProtocolUnsupported = "actioncable-unsupported"
)

// SupportedProtocols is the subprotocol list offered on every dial.
var SupportedProtocols = []string{ProtocolV1JSON, ProtocolUnsupported}

// Inbound frame types (server -> client). A frame without one of these in
// its "type" field is an application payload addressed to Identifier.
const (
	TypeWelcome             = "welcome"
	TypeDisconnect          = "disconnect"
	TypePing                = "ping"
	TypeConfirmSubscription = "confirm_subscription"
	TypeRejectSubscription  = "reject_subscription"
)

// Outbound command names (client -> server).
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandMessage     = "message"
)

// Disconnect reasons a server may report in a disconnect frame. Informational
// only; the client's behavior is driven by the Reconnect field, not Reason.
const (
	ReasonUnauthorized    = "unauthorized"
	ReasonInvalidRequest  = "invalid_request"
	ReasonServerRestart   = "server_restart"
)

// DefaultMountPath is the URL CreateConsumer uses when neither an explicit
// URL nor its config fallback supplies one.
const DefaultMountPath = "/cable"

// Tunable constants for ConnectionMonitor, fixed per spec rather than
// runtime-configurable.
const (
	staleThreshold     = 6 * time.Second
	pollIntervalMin    = 3 * time.Second
	pollIntervalMax    = 30 * time.Second
	pollIntervalMult   = 5.0
	visibilityDebounce = 200 * time.Millisecond
	reopenDelay        = 500 * time.Millisecond
)

// inboundFrame is the wire shape of a server -> client frame. Message is left
// as raw bytes so it can be handed to application code without forcing a
// schema on channel payloads.
type inboundFrame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Reconnect  bool            `json:"reconnect,omitempty"`
}

// outboundFrame is the wire shape of a client -> server frame. Data is a
// JSON-encoded string by design: the inner payload is double-encoded so the
// server can treat "data" as an opaque string until the channel layer parses
// it.
type outboundFrame struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}
