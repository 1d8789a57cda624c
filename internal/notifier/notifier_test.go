package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) NotifyStageStarted(_ context.Context, _, _, stageName string) {
	r.record("started:" + stageName)
}

func (r *recordingNotifier) NotifyStageCompleted(_ context.Context, _, _, stageName string, _ float64) {
	r.record("completed:" + stageName)
}

func (r *recordingNotifier) NotifyStageFailed(_ context.Context, _, _, stageName, _ string) {
	r.record("failed:" + stageName)
}

func (r *recordingNotifier) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingNotifier) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestComposite(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	composite := NewComposite(first)
	composite.Add(second)

	ctx := context.Background()
	composite.NotifyStageStarted(ctx, "pipe-1", "vid-1", "video_decoding")
	composite.NotifyStageCompleted(ctx, "pipe-1", "vid-1", "video_decoding", 33.3)
	composite.NotifyStageFailed(ctx, "pipe-1", "vid-1", "player_detection", "boom")

	expected := []string{"started:video_decoding", "completed:video_decoding", "failed:player_detection"}
	assert.Equal(t, expected, first.recorded())
	assert.Equal(t, expected, second.recorded())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoggingNotifierDoesNotPanic(t *testing.T) {
	n := NewLoggingNotifier(quietLogger())
	ctx := context.Background()
	n.NotifyStageStarted(ctx, "pipe-1", "vid-1", "video_decoding")
	n.NotifyStageCompleted(ctx, "pipe-1", "vid-1", "video_decoding", 100)
	n.NotifyStageFailed(ctx, "pipe-1", "vid-1", "video_decoding", "boom")
}

func dialTestHub(t *testing.T, hub *WebSocketNotifier) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

func TestWebSocketNotifier(t *testing.T) {
	t.Run("greets new clients", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		conn := dialTestHub(t, hub)

		greeting := readEnvelope(t, conn)
		assert.Equal(t, TypeConnection, greeting.Type)
		assert.Equal(t, "connected", greeting.Status)
	})

	t.Run("answers ping with pong", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		conn := dialTestHub(t, hub)
		readEnvelope(t, conn)

		require.NoError(t, conn.WriteJSON(controlMessage{Type: "ping"}))
		pong := readEnvelope(t, conn)
		assert.Equal(t, TypePong, pong.Type)
	})

	t.Run("broadcasts stage lifecycle envelopes", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		conn := dialTestHub(t, hub)
		readEnvelope(t, conn)

		ctx := context.Background()
		hub.NotifyStageStarted(ctx, "pipe-1", "vid-1", "video_decoding")
		started := readEnvelope(t, conn)
		assert.Equal(t, TypeStageStarted, started.Type)
		assert.Equal(t, "pipe-1", started.PipelineID)
		assert.Equal(t, "video_decoding", started.StageName)

		hub.NotifyStageCompleted(ctx, "pipe-1", "vid-1", "video_decoding", 33.3)
		completed := readEnvelope(t, conn)
		assert.Equal(t, TypeStageCompleted, completed.Type)
		require.NotNil(t, completed.ProgressPercentage)
		assert.Equal(t, 33.3, *completed.ProgressPercentage)

		hub.NotifyStageFailed(ctx, "pipe-1", "vid-1", "player_detection", "boom")
		failed := readEnvelope(t, conn)
		assert.Equal(t, TypeStageFailed, failed.Type)
		assert.Equal(t, "boom", failed.ErrorMessage)
	})

	t.Run("records subscriptions", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		conn := dialTestHub(t, hub)
		readEnvelope(t, conn)

		require.NoError(t, conn.WriteJSON(controlMessage{Type: "subscribe", PipelineID: "pipe-1"}))

		// Subscribe is recorded asynchronously; ping/pong round-trip
		// guarantees it was processed.
		require.NoError(t, conn.WriteJSON(controlMessage{Type: "ping"}))
		readEnvelope(t, conn)

		hub.mu.Lock()
		require.Len(t, hub.clients, 1)
		for client := range hub.clients {
			client.mu.Lock()
			assert.Contains(t, client.subscriptions, "pipe-1")
			client.mu.Unlock()
		}
		hub.mu.Unlock()
	})

	t.Run("prune does not race a concurrent pong", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		client := &wsClient{
			id:            "c1",
			send:          make(chan Envelope, 1),
			subscriptions: make(map[string]struct{}),
		}
		hub.mu.Lock()
		hub.clients[client] = struct{}{}
		hub.mu.Unlock()

		// Fill the buffer so the next broadcast prunes the client, while
		// pongs keep arriving from the read side.
		require.True(t, client.trySend(Envelope{Type: TypePong}))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				client.trySend(Envelope{Type: TypePong, Timestamp: time.Now().UTC()})
			}
		}()
		go func() {
			defer wg.Done()
			hub.NotifyStageStarted(context.Background(), "pipe-1", "vid-1", "video_decoding")
		}()
		wg.Wait()

		assert.Equal(t, 0, hub.ClientCount())
		assert.False(t, client.trySend(Envelope{Type: TypePong}))
	})

	t.Run("prunes disconnected clients", func(t *testing.T) {
		hub := NewWebSocketNotifier(quietLogger())
		conn := dialTestHub(t, hub)
		readEnvelope(t, conn)
		require.Equal(t, 1, hub.ClientCount())

		conn.Close()
		require.Eventually(t, func() bool {
			return hub.ClientCount() == 0
		}, 2*time.Second, 10*time.Millisecond)
	})
}
