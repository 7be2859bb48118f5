package signaling

import (
	"context"
	"encoding/json"
	"net/http"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/session"
)

// Authorizer decides whether a user may enter a room. The signaling layer
// only sees the coarse decision.
type Authorizer interface {
	Authorize(ctx context.Context, room string, userID int64) session.Decision
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections and runs the signaling protocol on them.
type Handler struct {
	registry *Registry
	auth     Authorizer
	logger   zerolog.Logger
}

func NewHandler(registry *Registry, auth Authorizer, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, auth: auth, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the connection and starts the read/write pumps.
// Identity is claimed at join time and checked against the appointment, not
// at upgrade time.
func (h *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := &connState{
		handler: h,
		ws:      ws,
		peer:    NewPeer(0),
	}
	go conn.writePump()
	go conn.readPump()
	return nil
}

// connState is the per-connection protocol state. The peer lives as long as
// the connection; room membership comes and goes with join/leave. All fields
// except peer.Send are owned by the read pump.
type connState struct {
	handler *Handler
	ws      *gorillawebsocket.Conn
	peer    *Peer
	room    string
}

func (cs *connState) readPump() {
	defer func() {
		cs.leaveRoom()
		cs.peer.Drop()
		cs.ws.Close()
	}()

	for {
		_, data, err := cs.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		switch msg.Type {
		case TypeJoinRoom:
			cs.handleJoin(msg)
		case TypeOffer, TypeAnswer, TypeICECandidate:
			if cs.room != "" {
				cs.handler.registry.Relay(cs.room, cs.peer.ID, msg.Target, msg.Type, msg.Payload)
			}
		case TypeLeaveRoom:
			cs.leaveRoom()
		}
	}
}

// handleJoin runs the authorization check on this connection's read
// goroutine, so a slow check suspends only this connection. A denied join
// leaves the connection open for another attempt.
func (cs *connState) handleJoin(msg Message) {
	if cs.room != "" {
		cs.peer.trySend(encode(Message{Type: TypeJoinError, Reason: "already_in_room"}))
		return
	}

	decision := cs.handler.auth.Authorize(context.Background(), msg.Room, msg.UserID)
	if !decision.Allowed {
		cs.handler.logger.Info().
			Str("room", msg.Room).
			Int64("user_id", msg.UserID).
			Str("reason", string(decision.Reason)).
			Msg("room join denied")
		cs.peer.trySend(encode(Message{Type: TypeJoinError, Reason: string(decision.Reason)}))
		return
	}

	cs.peer.UserID = msg.UserID
	cs.handler.registry.Join(msg.Room, cs.peer)
	cs.room = msg.Room

	cs.handler.logger.Info().
		Str("room", msg.Room).
		Str("peer_id", cs.peer.ID).
		Int64("user_id", msg.UserID).
		Msg("peer joined room")
}

func (cs *connState) leaveRoom() {
	if cs.room == "" {
		return
	}
	cs.handler.registry.Leave(cs.room, cs.peer.ID)
	cs.handler.logger.Info().
		Str("room", cs.room).
		Str("peer_id", cs.peer.ID).
		Msg("peer left room")
	cs.room = ""
}

func (cs *connState) writePump() {
	defer cs.ws.Close()

	for data := range cs.peer.Send {
		if err := cs.ws.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			return
		}
	}
}
