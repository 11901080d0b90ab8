package actioncable

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestSubscriptions_CreateAndLen(t *testing.T) {
	consumer := NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop()))

	if _, err := consumer.Subscriptions().Create("ChatChannel", nil, Callbacks{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if consumer.Subscriptions().Len() != 1 {
		t.Errorf("expected Len 1, got %d", consumer.Subscriptions().Len())
	}

	if _, err := consumer.Subscriptions().Create("ChatChannel", nil, Callbacks{}); err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if consumer.Subscriptions().Len() != 2 {
		t.Errorf("expected Len 2 after a duplicate subscription, got %d", consumer.Subscriptions().Len())
	}
}

func TestSubscriptions_InitializedFiresSynchronously(t *testing.T) {
	consumer := NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop()))

	fired := false
	_, err := consumer.Subscriptions().Create("ChatChannel", nil, Callbacks{
		Initialized: func() { fired = true },
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !fired {
		t.Error("expected Initialized to fire synchronously from Create")
	}
}

func TestSubscriptions_RemoveDropsDuplicatesOneAtATime(t *testing.T) {
	r := newSubscriptions(NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop())), zap.NewNop())

	sub1 := &Subscription{consumer: r.consumer, identifier: `{"channel":"ChatChannel"}`}
	sub2 := &Subscription{consumer: r.consumer, identifier: `{"channel":"ChatChannel"}`}
	r.add(sub1)
	r.add(sub2)

	r.remove(sub1)
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining subscription, got %d", r.Len())
	}

	r.remove(sub2)
	if r.Len() != 0 {
		t.Fatalf("expected 0 remaining subscriptions, got %d", r.Len())
	}
}

func TestSubscriptions_RejectRemovesAllMatchingIdentifier(t *testing.T) {
	r := newSubscriptions(NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop())), zap.NewNop())

	var rejectedCount int
	cb := Callbacks{Rejected: func() { rejectedCount++ }}

	identifier := `{"channel":"ChatChannel"}`
	sub1 := &Subscription{consumer: r.consumer, identifier: identifier, callbacks: cb}
	sub2 := &Subscription{consumer: r.consumer, identifier: identifier, callbacks: cb}
	other := &Subscription{consumer: r.consumer, identifier: `{"channel":"OtherChannel"}`}
	r.add(sub1)
	r.add(sub2)
	r.add(other)

	r.reject(identifier)

	if rejectedCount != 2 {
		t.Errorf("expected 2 Rejected callbacks fired, got %d", rejectedCount)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 subscription remaining after rejection, got %d", r.Len())
	}
}

func TestSubscriptions_NotifyAllReentrancySafe(t *testing.T) {
	consumer := NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop()))
	r := consumer.Subscriptions()

	var secondFired bool
	_, err := r.Create("ChatChannel", nil, Callbacks{
		Disconnected: func(bool) {
			// A reentrant subscribe during notifyAll must not corrupt the
			// in-flight iteration (snapshot is taken up front).
			_, _ = r.Create("OtherChannel", nil, Callbacks{
				Disconnected: func(bool) { secondFired = true },
			})
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r.notifyAll(callbackDisconnected, map[string]any{"willAttemptReconnect": false})

	if r.Len() != 2 {
		t.Errorf("expected the reentrant Create to have landed, Len() = %d", r.Len())
	}
	if secondFired {
		t.Error("the reentrantly created subscription should not receive the in-flight notifyAll round")
	}
}

func TestSubscriptions_CreateAfterDisconnectReturnsErrClosed(t *testing.T) {
	consumer := NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop()))
	consumer.Disconnect()

	sub, err := consumer.Subscriptions().Create("ChatChannel", nil, Callbacks{})
	if sub != nil {
		t.Errorf("expected a nil subscription, got %+v", sub)
	}
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSubscriptions_SnapshotIsACopy(t *testing.T) {
	consumer := NewConsumer(StaticURL("ws://127.0.0.1:1/cable"), WithLogger(zap.NewNop()))
	r := consumer.Subscriptions()
	if _, err := r.Create("ChatChannel", nil, Callbacks{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap := r.snapshot()
	snap[0] = nil

	if r.subs[0] == nil {
		t.Error("mutating the snapshot slice must not affect the registry's backing slice")
	}
}
