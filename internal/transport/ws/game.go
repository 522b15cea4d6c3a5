package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quadball/server/internal/apperr"
	"quadball/server/internal/protocol"
	"quadball/server/internal/room"
	"quadball/server/internal/token"
)

const writeWait = 5 * time.Second

// GameHandler serves /ws/game/{room_id}/{player_id}: the per-room
// binary state broadcast and the client's movement/throw intents.
type GameHandler struct {
	registry *room.Registry
	issuer   *token.Issuer
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewGameHandler(registry *room.Registry, issuer *token.Issuer, logger *log.Logger) *GameHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &GameHandler{registry: registry, issuer: issuer, logger: logger, upgrader: newUpgrader()}
}

// gameSession adapts a *websocket.Conn to room.GameSession, guarding
// concurrent writes from the tick-loop broadcaster and the read loop's
// JSON replies with one mutex, same as the teacher's subscriber type.
type gameSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *gameSession) WriteBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *gameSession) Close() {
	s.conn.Close()
}

func (h *GameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	playerID := r.PathValue("player_id")
	tok := r.URL.Query().Get("token")

	rm, ok := h.registry.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err := h.issuer.Verify(tok, roomID, playerID); err != nil {
		http.Error(w, "invalid reconnect token", statusForError(err))
		return
	}

	state := rm.State()
	if state == nil {
		http.Error(w, "game has not started", http.StatusConflict)
		return
	}
	if _, ok := state.Players[playerID]; !ok {
		http.Error(w, "player not in this match", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("game: upgrade failed for %s: %v", playerID, err)
		return
	}
	defer conn.Close()

	sess := &gameSession{conn: conn}
	rm.RegisterSession(playerID, sess)
	defer func() {
		rm.UnregisterSession(playerID, sess)
		rm.MarkDisconnected(playerID)
	}()

	disconnectAfter := rm.Config().DisconnectAfter
	conn.SetReadDeadline(time.Now().Add(disconnectAfter))

	initial := protocol.InitialStateMsg{
		Type:         "initial_state",
		PlayersOrder: state.PlayerOrder(),
		BallsOrder:   state.BallOrder(),
		Config:       rm.Config(),
		State:        protocol.NewGameStateView(state),
	}
	sess.mu.Lock()
	err = conn.WriteJSON(initial)
	sess.mu.Unlock()
	if err != nil {
		h.logger.Printf("game: initial_state to %s: %v", playerID, err)
		return
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			dx, dy, err := protocol.DecodeMovementFrame(payload)
			if err != nil {
				h.logger.Printf("game: malformed movement frame from %s: %v", playerID, err)
				continue
			}
			rm.QueueMovement(playerID, dx, dy)

		case websocket.TextMessage:
			var envelope protocol.GameEnvelope
			if err := json.Unmarshal(payload, &envelope); err != nil {
				h.logger.Printf("game: malformed text frame from %s: %v", playerID, err)
				continue
			}

			switch envelope.Type {
			case "throw":
				rm.QueueThrow(playerID)

			case "heartbeat":
				var hb protocol.HeartbeatMsg
				if err := json.Unmarshal(payload, &hb); err != nil {
					h.logger.Printf("game: malformed heartbeat from %s: %v", playerID, err)
					continue
				}
				conn.SetReadDeadline(time.Now().Add(disconnectAfter))

				now := time.Now()
				ack := protocol.HeartbeatAckMsg{
					Type:       "heartbeat",
					ServerTime: now.UnixMilli(),
					ClientTime: hb.SentAt,
					RTTMillis:  measureRTT(now, hb.SentAt).Milliseconds(),
				}
				sess.mu.Lock()
				err = conn.WriteJSON(ack)
				sess.mu.Unlock()
				if err != nil {
					h.logger.Printf("game: heartbeat ack to %s: %v", playerID, err)
					return
				}
			}
		}
	}
}

// measureRTT derives round-trip latency from the client's own send
// timestamp, discarding clearly bogus values the way the teacher's
// UpdateHeartbeat treats a future-dated clientSent as untrustworthy.
func measureRTT(receivedAt time.Time, clientSentAtMillis int64) time.Duration {
	if clientSentAtMillis <= 0 {
		return 0
	}
	clientTime := time.UnixMilli(clientSentAtMillis)
	if clientTime.After(receivedAt.Add(5 * time.Second)) {
		return 0
	}
	rtt := receivedAt.Sub(clientTime)
	if rtt < 0 {
		return 0
	}
	return rtt
}

// statusForError maps an apperr.Kind to the HTTP status spec §7 implies
// for it, falling back to 401 for an unkinded error since every caller
// of statusForError today only passes token-verification failures.
func statusForError(err error) int {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusUnauthorized
	}
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindProtocol:
		return http.StatusBadRequest
	case apperr.KindTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
