package actioncable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// newPoolTestServer starts an httptest server that upgrades every connection
// and immediately sends a welcome frame. Pool.Start itself only needs the
// upgrade to succeed for a shard's dial to count as successful.
func newPoolTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: SupportedProtocols}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteJSON(inboundFrame{Type: TypeWelcome})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURLOf(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewPool_DefaultsAndShardSetup(t *testing.T) {
	pool := NewPool(PoolConfig{Resolver: StaticURL("ws://example.com/cable")})

	if len(pool.consumers) != 1 {
		t.Errorf("expected Size to default to 1, got %d consumers", len(pool.consumers))
	}
	if pool.cfg.MessageBufferSize != 64 {
		t.Errorf("expected MessageBufferSize to default to 64, got %d", pool.cfg.MessageBufferSize)
	}
	if pool.logger == nil {
		t.Error("expected a non-nil default logger")
	}
}

func TestPool_ShardForIsConsistent(t *testing.T) {
	pool := NewPool(PoolConfig{Size: 4, Resolver: StaticURL("ws://example.com/cable")})

	identifiers := []string{`{"channel":"A"}`, `{"channel":"B"}`, `{"channel":"C"}`}
	for _, id := range identifiers {
		first := pool.shardFor(id)
		second := pool.shardFor(id)
		if first != second {
			t.Errorf("shardFor(%q) not consistent: %d vs %d", id, first, second)
		}
		if first < 0 || first >= 4 {
			t.Errorf("shardFor(%q) = %d out of range [0,4)", id, first)
		}
	}
}

func TestPool_StartConnectsAllShards(t *testing.T) {
	srv := newPoolTestServer(t)

	pool := NewPool(PoolConfig{
		Size:     3,
		Resolver: StaticURL(wsURLOf(srv)),
		Logger:   zap.NewNop(),
	})

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("pool start: %v", err)
	}
	defer pool.Close()

	for i, c := range pool.consumers {
		// open() sets the state before Connect returns; poll briefly anyway.
		deadline := time.Now().Add(time.Second)
		for !c.connection.isOpen() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if !c.connection.isOpen() {
			t.Errorf("expected shard %d to be open", i)
		}
	}
}

func TestPool_StartFailsIfAnyShardCannotDial(t *testing.T) {
	pool := NewPool(PoolConfig{
		Size:     2,
		Resolver: StaticURL("ws://127.0.0.1:1/cable"),
		Logger:   zap.NewNop(),
	})

	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("expected an error when no shard can dial")
	}
}

func TestPool_SubscribeRoutesMessagesOntoPoolChannel(t *testing.T) {
	srv := newPoolTestServer(t)

	pool := NewPool(PoolConfig{
		Size:     2,
		Resolver: StaticURL(wsURLOf(srv)),
		Logger:   zap.NewNop(),
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("pool start: %v", err)
	}
	defer pool.Close()

	sub, err := pool.Subscribe("ChatChannel", nil, Callbacks{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	shard := pool.shardFor(sub.Identifier())
	conn := pool.consumers[shard].connection
	// Simulate an inbound application message on this subscription directly
	// through dispatch, the same path the read loop uses.
	frame, _ := json.Marshal(inboundFrame{
		Identifier: sub.Identifier(),
		Message:    json.RawMessage(`{"body":"hi"}`),
	})
	conn.dispatch(frame)

	select {
	case msg := <-pool.Messages():
		if msg.Identifier != sub.Identifier() {
			t.Errorf("expected identifier %q, got %q", sub.Identifier(), msg.Identifier)
		}
		if string(msg.Message) != `{"body":"hi"}` {
			t.Errorf("unexpected message payload: %s", msg.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pooled message")
	}
}

func TestPool_CloseClosesMessageChannel(t *testing.T) {
	srv := newPoolTestServer(t)

	pool := NewPool(PoolConfig{
		Size:     1,
		Resolver: StaticURL(wsURLOf(srv)),
		Logger:   zap.NewNop(),
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("pool start: %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, ok := <-pool.Messages()
	if ok {
		t.Error("expected Messages channel to be closed after Close")
	}
}
