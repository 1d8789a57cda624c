package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// Envelope message types.
const (
	TypeConnection     = "connection"
	TypeStageStarted   = "stage_started"
	TypeStageCompleted = "stage_completed"
	TypeStageFailed    = "stage_failed"
	TypePong           = "pong"
)

// Envelope is the wire form of a progress message.
type Envelope struct {
	Type               string    `json:"type"`
	PipelineID         string    `json:"pipeline_id,omitempty"`
	VideoID            string    `json:"video_id,omitempty"`
	StageName          string    `json:"stage_name,omitempty"`
	ProgressPercentage *float64  `json:"progress_percentage,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	Status             string    `json:"status,omitempty"`
	Message            string    `json:"message,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// controlMessage is what clients may send: ping or subscribe.
type controlMessage struct {
	Type       string `json:"type"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

const clientSendBuffer = 32

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan Envelope

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]struct{}
}

// trySend queues the envelope unless the client is closed or its buffer is
// full. Sending and closing both happen under the client mutex, so a send
// can never race a close of the channel.
func (c *wsClient) trySend(envelope Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- envelope:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once, ending the client's writePump.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WebSocketNotifier broadcasts progress envelopes to connected WebSocket
// clients. Subscriptions are recorded for future filtering; the current
// design broadcasts every event to every client.
type WebSocketNotifier struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewWebSocketNotifier creates an empty hub.
func NewWebSocketNotifier(logger *slog.Logger) *WebSocketNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketNotifier{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Progress is read-only telemetry; any origin may listen.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger.With("component", "websocket-progress"),
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (n *WebSocketNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		id:            ulid.Make().String(),
		conn:          conn,
		send:          make(chan Envelope, clientSendBuffer),
		subscriptions: make(map[string]struct{}),
	}

	n.mu.Lock()
	n.clients[client] = struct{}{}
	n.mu.Unlock()
	n.logger.Debug("client connected", "client_id", client.id)

	client.trySend(Envelope{
		Type:      TypeConnection,
		Status:    "connected",
		Message:   "progress stream established",
		Timestamp: time.Now().UTC(),
	})

	go n.writePump(client)
	n.readPump(client)
}

// ClientCount returns the number of connected clients.
func (n *WebSocketNotifier) ClientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// NotifyStageStarted implements core.ProgressNotifier.
func (n *WebSocketNotifier) NotifyStageStarted(_ context.Context, pipelineID, videoID, stageName string) {
	n.broadcast(Envelope{
		Type:       TypeStageStarted,
		PipelineID: pipelineID,
		VideoID:    videoID,
		StageName:  stageName,
		Timestamp:  time.Now().UTC(),
	})
}

// NotifyStageCompleted implements core.ProgressNotifier.
func (n *WebSocketNotifier) NotifyStageCompleted(_ context.Context, pipelineID, videoID, stageName string, progressPercentage float64) {
	n.broadcast(Envelope{
		Type:               TypeStageCompleted,
		PipelineID:         pipelineID,
		VideoID:            videoID,
		StageName:          stageName,
		ProgressPercentage: &progressPercentage,
		Timestamp:          time.Now().UTC(),
	})
}

// NotifyStageFailed implements core.ProgressNotifier.
func (n *WebSocketNotifier) NotifyStageFailed(_ context.Context, pipelineID, videoID, stageName, errorMessage string) {
	n.broadcast(Envelope{
		Type:         TypeStageFailed,
		PipelineID:   pipelineID,
		VideoID:      videoID,
		StageName:    stageName,
		ErrorMessage: errorMessage,
		Timestamp:    time.Now().UTC(),
	})
}

// broadcast queues the envelope for every client, dropping clients whose
// send buffer is full. A slow consumer is pruned rather than allowed to
// stall the pipeline.
func (n *WebSocketNotifier) broadcast(envelope Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for client := range n.clients {
		if !client.trySend(envelope) {
			n.logger.Debug("dropping slow client", "client_id", client.id)
			delete(n.clients, client)
			client.close()
		}
	}
}

func (n *WebSocketNotifier) remove(client *wsClient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.clients, client)
	client.close()
}

// Close disconnects all clients.
func (n *WebSocketNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for client := range n.clients {
		delete(n.clients, client)
		client.close()
	}
}

func (n *WebSocketNotifier) writePump(client *wsClient) {
	defer client.conn.Close()
	for envelope := range client.send {
		data, err := json.Marshal(envelope)
		if err != nil {
			n.logger.Error("failed to encode envelope", "error", err)
			continue
		}
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			n.logger.Debug("client write failed", "client_id", client.id, "error", err)
			n.remove(client)
			return
		}
	}
}

func (n *WebSocketNotifier) readPump(client *wsClient) {
	defer func() {
		n.remove(client)
		client.conn.Close()
		n.logger.Debug("client disconnected", "client_id", client.id)
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			n.logger.Debug("ignoring malformed control message", "client_id", client.id)
			continue
		}

		switch msg.Type {
		case "ping":
			client.trySend(Envelope{Type: TypePong, Timestamp: time.Now().UTC()})
		case "subscribe":
			if msg.PipelineID != "" {
				client.mu.Lock()
				client.subscriptions[msg.PipelineID] = struct{}{}
				client.mu.Unlock()
				n.logger.Debug("client subscribed",
					"client_id", client.id,
					"pipeline_id", msg.PipelineID,
				)
			}
		}
	}
}
