package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/internal/storage/storagetest"
	"github.com/mapscene/animator/pkg/core"
	"github.com/mapscene/animator/pkg/streaming"
)

// testServer upgrades to WebSocket, records received messages and acks
// the types in ackTypes.
func testServer(t *testing.T, ackTypes ...string) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			for _, typ := range ackTypes {
				if env.Type != typ {
					continue
				}
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) lastSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) ofType(typ string) []streaming.Envelope {
	var out []streaming.Envelope
	for _, env := range m.all() {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newBackend(t *testing.T, srv *httptest.Server) *Backend {
	t.Helper()
	b := New(Config{URL: wsURL(srv), Secret: "test"}, slog.New(slog.DiscardHandler))
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInit_SendsHello(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	msgs := ml.ofType(streaming.TypeHello)
	require.Len(t, msgs, 1)

	var hello streaming.HelloPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &hello))
	assert.Equal(t, ClientName, hello.Client)
	assert.Equal(t, b.SessionID(), hello.SessionID)
	assert.Equal(t, "test", ml.lastSecret())
}

func TestInit_Errors(t *testing.T) {
	t.Run("no url", func(t *testing.T) {
		b := New(Config{}, nil)
		assert.Error(t, b.Init())
	})

	t.Run("hello not acked", func(t *testing.T) {
		srv, _ := testServer(t)
		b := New(Config{URL: wsURL(srv)}, slog.New(slog.DiscardHandler))
		defer b.Close()
		// Shorten the wait by closing from another goroutine.
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = b.Close()
		}()
		assert.Error(t, b.Init())
	})

	t.Run("unreachable", func(t *testing.T) {
		b := New(Config{URL: "ws://127.0.0.1:1"}, slog.New(slog.DiscardHandler))
		assert.Error(t, b.Init())
	})
}

func TestSaveScene_WaitsForAck(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeHello, streaming.TypeSceneSaved)
	b := newBackend(t, srv)

	s := storagetest.Scene("s-1", "airport")
	require.NoError(t, b.SaveScene(s))

	msgs := ml.ofType(streaming.TypeSceneSaved)
	require.Len(t, msgs, 1)

	var got core.Scene
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, s, got)
}

func TestSaveScene_RejectsEmptyID(t *testing.T) {
	srv, _ := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	assert.Error(t, b.SaveScene(core.Scene{Name: "x"}))
	assert.Error(t, b.DeleteScene(""))
}

func TestReadsUnsupported(t *testing.T) {
	srv, _ := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	_, err := b.LoadScene("s-1")
	assert.ErrorIs(t, err, storage.ErrUnsupported)

	_, err = b.ListScenes()
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	require.NoError(t, b.DeleteScene("s-9"))
	require.NoError(t, b.Publish(streaming.TypeFrame, streaming.FramePayload{SceneID: "s-1", Time: 1.5}))

	require.Eventually(t, func() bool {
		return len(ml.all()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	types := make([]string, 0, 3)
	for _, env := range ml.all() {
		types = append(types, env.Type)
	}
	assert.Equal(t, []string{streaming.TypeHello, streaming.TypeSceneDeleted, streaming.TypeFrame}, types)

	var deleted streaming.SceneDeletedPayload
	require.NoError(t, json.Unmarshal(ml.ofType(streaming.TypeSceneDeleted)[0].Payload, &deleted))
	assert.Equal(t, "s-9", deleted.ID)
}

func TestPublish_MarshalError(t *testing.T) {
	srv, _ := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	assert.Error(t, b.Publish(streaming.TypeStatus, make(chan int)))
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, streaming.TypeHello)
	b := newBackend(t, srv)

	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestOutboxFull_DropsOldest(t *testing.T) {
	c := newConnection(slog.New(slog.DiscardHandler))
	c.send([]byte("first"))
	for range outboxSize {
		c.send([]byte("x"))
	}
	assert.Equal(t, uint64(1), c.dropped())
	frames := c.outbox.Drain()
	require.Len(t, frames, outboxSize)
	assert.Equal(t, "x", string(frames[0]))
}

func TestSendAndWait_Timeout(t *testing.T) {
	c := newConnection(slog.New(slog.DiscardHandler))
	err := c.sendAndWait([]byte("hello"), streaming.TypeHello, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Empty(t, c.waiters[streaming.TypeHello])
}

func TestResolve_OldestWaiterFirst(t *testing.T) {
	c := newConnection(slog.New(slog.DiscardHandler))
	first, second := make(chan struct{}), make(chan struct{})
	c.waiters[streaming.TypeSceneSaved] = []chan struct{}{first, second}

	c.resolve(streaming.TypeSceneSaved)
	select {
	case <-first:
	default:
		t.Fatal("first waiter not released")
	}
	assert.Len(t, c.waiters[streaming.TypeSceneSaved], 1)

	// no waiter for this type is a no-op
	c.resolve(streaming.TypeHello)
}

func TestReconnectPolicy_Backoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reconnectPolicy.Delay(tt.attempt+1), "attempt %d", tt.attempt)
	}
}
