package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tieubaoca/knowledge-be/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
	wsMaxMessage = 512 * 1024
)

// WebSocketService streams document ingestion over a websocket: the client
// sends ingest messages, the server stores each document through the
// coordinator and answers with a status message carrying the document id or
// the error.
type WebSocketService struct {
	knowledge *KnowledgeService
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

func NewWebSocketService(knowledge *KnowledgeService, logger *slog.Logger) *WebSocketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketService{
		knowledge: knowledge,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

func (s *WebSocketService) HandleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Keepalive pings until the connection goes away.
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(wsWriteWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		var req types.WebsocketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch req.Type {
		case types.TypeWebsocketPing:
			s.write(conn, types.WebsocketResponse{Type: types.TypeWebsocketPong})

		case types.TypeWebsocketIngest:
			doc, err := s.knowledge.StoreDocument(ctx, req.Payload)
			if err != nil {
				s.write(conn, types.WebsocketResponse{
					Type: types.TypeWebsocketError,
					Payload: types.BatchStoreStatus{
						Title:   req.Payload.Title,
						Status:  types.StatusError,
						Message: err.Error(),
					},
				})
				continue
			}
			s.write(conn, types.WebsocketResponse{
				Type: types.TypeWebsocketStatus,
				Payload: types.BatchStoreStatus{
					DocumentID: doc.ID,
					Title:      doc.Title,
					Status:     types.StatusSuccess,
				},
			})

		default:
			s.write(conn, types.WebsocketResponse{
				Type:    types.TypeWebsocketError,
				Payload: map[string]string{"message": "unknown message type: " + req.Type},
			})
		}
	}
}

func (s *WebSocketService) write(conn *websocket.Conn, resp types.WebsocketResponse) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write error", "error", err)
	}
}
