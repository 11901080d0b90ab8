package actioncable

import (
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Callbacks are the optional hooks application code supplies when creating a
// Subscription. Every field is optional; a nil callback is silently skipped
// when its event fires. This models the source's "mixin" of arbitrary
// functions as a plain struct instead of runtime duck-typing.
type Callbacks struct {
	// Initialized fires synchronously from Create, before the subscribe
	// command is even sent.
	Initialized func()

	// Connected fires when the server confirms the subscription.
	Connected func()

	// Disconnected fires when the Connection transitions to disconnected.
	// willAttemptReconnect reports whether the ConnectionMonitor is still
	// running (and will therefore try to bring the socket back up).
	Disconnected func(willAttemptReconnect bool)

	// Rejected fires when the server rejects the subscription; the
	// Subscription is removed from the registry before this is called.
	Rejected func()

	// Received fires for every application payload addressed to this
	// subscription's identifier. message is the raw "message" field from
	// the inbound frame, left undecoded so callers can unmarshal it into
	// whatever shape their channel uses.
	Received func(message json.RawMessage)
}

// callbackName is an internal tag for which Callbacks field to invoke,
// replacing the source's single polymorphic notify(name, ...args) with a
// small closed set dispatched by a switch (see design note on mixin
// callbacks -> capability polymorphism).
type callbackName int

const (
	callbackInitialized callbackName = iota
	callbackConnected
	callbackDisconnected
	callbackRejected
	callbackReceived
)

// Subscription is a lightweight value bundling a Consumer back-reference,
// its wire identifier, and the application's callbacks. It is owned by the
// Subscriptions registry; application code holds only a pointer to it.
type Subscription struct {
	consumer   *Consumer
	identifier string
	callbacks  Callbacks
}

// Identifier returns the canonical wire identifier for this subscription.
func (s *Subscription) Identifier() string { return s.identifier }

// Perform sends a channel action: it sets data["action"] = action and sends
// the result. data may be nil.
func (s *Subscription) Perform(action string, data map[string]any) bool {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["action"] = action
	return s.Send(data)
}

// Send asks the Consumer to transmit data on this subscription's identifier.
// Returns false without error if the underlying connection is not open.
func (s *Subscription) Send(data map[string]any) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		s.consumer.logger.Error("subscription-send-marshal-failed", zap.Error(err))
		return false
	}
	return s.consumer.connection.send(outboundFrame{
		Command:    CommandMessage,
		Identifier: s.identifier,
		Data:       string(payload),
	})
}

// Unsubscribe removes this subscription from the registry, sending an
// unsubscribe command if no other tracked subscription shares its
// identifier.
func (s *Subscription) Unsubscribe() {
	s.consumer.subscriptions.remove(s)
}

// invoke calls the named callback if present, swallowing any panic from
// application code per the spec's "recover locally, never raise" policy.
func (s *Subscription) invoke(name callbackName, arg any) {
	defer func() {
		if r := recover(); r != nil {
			s.consumer.logger.Error("subscription-callback-panic",
				zap.Int("callback", int(name)), zap.Any("recovered", r))
		}
	}()

	switch name {
	case callbackInitialized:
		if s.callbacks.Initialized != nil {
			s.callbacks.Initialized()
		}
	case callbackConnected:
		if s.callbacks.Connected != nil {
			s.callbacks.Connected()
		}
	case callbackDisconnected:
		if s.callbacks.Disconnected != nil {
			willReconnect, _ := arg.(bool)
			s.callbacks.Disconnected(willReconnect)
		}
	case callbackRejected:
		if s.callbacks.Rejected != nil {
			s.callbacks.Rejected()
		}
	case callbackReceived:
		if s.callbacks.Received != nil {
			message, _ := arg.(json.RawMessage)
			s.callbacks.Received(message)
		}
	}
}
