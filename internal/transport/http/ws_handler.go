package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"quiz-portal/internal/metrics"
)

// WSHandler streams leaderboard snapshots over a websocket. Clients pick a
// board with ?board= and may switch with a subscribe message.
type WSHandler struct {
	feed     *app.LeaderboardFeed
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.LeaderboardFeed, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type subscribePayload struct {
	Board domain.Board `json:"board"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and relays snapshots until the client leaves.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	board := domain.Board(r.URL.Query().Get("board"))
	if board == "" {
		board = domain.BoardOverall
	}
	updates, cancel, err := h.feed.Subscribe(board)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	metrics.WebSocketConnectionsTotal.Inc()
	metrics.LeaderboardSubscribers.Inc()
	defer metrics.LeaderboardSubscribers.Dec()

	send := make(chan outboundMessage[any], 16)
	switches := make(chan domain.Board)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	// Only this goroutine touches updates and cancel after the handshake.
	go func() {
		defer close(updatesDone)
		defer func() { cancel() }()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: snap}:
				case <-closeSignals:
					return
				}
			case next := <-switches:
				nextUpdates, nextCancel, err := h.feed.Subscribe(next)
				if err != nil {
					select {
					case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}:
					case <-closeSignals:
						return
					}
					continue
				}
				cancel()
				updates, cancel = nextUpdates, nextCancel
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "subscribe":
			var payload subscribePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Board == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid subscribe payload"}}
				continue
			}
			select {
			case switches <- payload.Board:
			case <-updatesDone:
			}
		case "ping":
			send <- outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
