package actioncable

import (
	"sync"

	"go.uber.org/zap"
)

// Subscriptions is the multiplexing registry: it owns the ordered list of
// Subscription values, drives the subscribe/unsubscribe control-channel
// commands, and fans out lifecycle callbacks. Duplicates are permitted: two
// subscriptions created with equal params both get tracked, and operations
// that target an identifier apply to every matching entry.
type Subscriptions struct {
	consumer *Consumer
	logger   *zap.Logger

	mu   sync.Mutex
	subs []*Subscription
}

func newSubscriptions(consumer *Consumer, logger *zap.Logger) *Subscriptions {
	return &Subscriptions{consumer: consumer, logger: logger}
}

// Create builds params from channel and an optional extra-params map,
// constructs a Subscription, and adds it to the registry.
func (r *Subscriptions) Create(channel string, params map[string]any, callbacks Callbacks) (*Subscription, error) {
	if r.consumer.isClosed() {
		return nil, ErrClosed
	}

	identifier, err := identifierFor(channelParams(channel, params))
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		consumer:   r.consumer,
		identifier: identifier,
		callbacks:  callbacks,
	}
	r.add(sub)
	return sub, nil
}

// add appends sub to the registry, ensures the connection is active, fires
// Initialized, and sends the subscribe command.
func (r *Subscriptions) add(sub *Subscription) {
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	count := len(r.subs)
	r.mu.Unlock()

	SubscriptionCount.Set(float64(count))

	r.consumer.ensureActiveConnection()

	sub.invoke(callbackInitialized, nil)

	if !r.sendCommand(sub, CommandSubscribe) {
		r.logger.Debug("subscribe-command-not-sent-socket-closed", zap.String("identifier", sub.identifier))
	}
}

// remove drops sub from the registry. An unsubscribe command is sent only if
// no remaining subscription shares its identifier — the server tracks
// identifiers, not client-side duplicates.
func (r *Subscriptions) remove(sub *Subscription) {
	r.mu.Lock()
	for i, s := range r.subs {
		if s == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
	remaining := r.hasIdentifierLocked(sub.identifier)
	count := len(r.subs)
	r.mu.Unlock()

	SubscriptionCount.Set(float64(count))

	if !remaining {
		r.sendCommand(sub, CommandUnsubscribe)
	}
}

func (r *Subscriptions) hasIdentifierLocked(identifier string) bool {
	for _, s := range r.subs {
		if s.identifier == identifier {
			return true
		}
	}
	return false
}

// reject removes every subscription sharing identifier and fires Rejected on
// each. Called when the server sends reject_subscription.
func (r *Subscriptions) reject(identifier string) {
	matches := r.removeByIdentifier(identifier)

	RejectedSubscriptionsTotal.Inc()

	for _, sub := range matches {
		sub.invoke(callbackRejected, nil)
	}
}

func (r *Subscriptions) removeByIdentifier(identifier string) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*Subscription
	kept := r.subs[:0:0]
	for _, s := range r.subs {
		if s.identifier == identifier {
			matches = append(matches, s)
			continue
		}
		kept = append(kept, s)
	}
	r.subs = kept
	SubscriptionCount.Set(float64(len(r.subs)))
	return matches
}

// reload re-sends the subscribe command for every tracked subscription, in
// insertion order. Called on welcome: this is how the client recovers from a
// reconnect, by re-advertising interest and letting the server rebuild its
// own state.
func (r *Subscriptions) reload() {
	for _, sub := range r.snapshot() {
		r.sendCommand(sub, CommandSubscribe)
	}
}

// notifyByIdentifier invokes the named callback on every subscription
// sharing identifier.
func (r *Subscriptions) notifyByIdentifier(identifier string, name callbackName, arg ...any) {
	var a any
	if len(arg) > 0 {
		a = arg[0]
	}
	for _, sub := range r.snapshot() {
		if sub.identifier == identifier {
			sub.invoke(name, a)
		}
	}
}

// notifyAll invokes the named callback on every tracked subscription. Takes
// a snapshot before iterating so a callback that synchronously creates or
// removes subscriptions (reentrancy, see spec §5) cannot corrupt the
// iteration.
func (r *Subscriptions) notifyAll(name callbackName, arg any) {
	if name == callbackDisconnected {
		willReconnect, _ := arg.(map[string]any)["willAttemptReconnect"].(bool)
		for _, sub := range r.snapshot() {
			sub.invoke(name, willReconnect)
		}
		return
	}
	for _, sub := range r.snapshot() {
		sub.invoke(name, arg)
	}
}

// snapshot returns a shallow copy of the subscription list, safe to iterate
// while the registry is concurrently mutated by a reentrant callback.
func (r *Subscriptions) snapshot() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

// sendCommand transmits {command, identifier} via the Consumer. A failed
// send (socket closed) is not an error here: the next welcome's reload()
// makes it up.
func (r *Subscriptions) sendCommand(sub *Subscription, command string) bool {
	return r.consumer.connection.send(outboundFrame{
		Command:    command,
		Identifier: sub.identifier,
	})
}

// Len returns the number of tracked subscriptions, including duplicates.
func (r *Subscriptions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
