// Package ws implements the two WebSocket surfaces of spec §6: the
// lobby socket (room create/join/list/update/start) and the per-room game
// socket (binary state broadcast, movement/throw intents). Grounded
// on the teacher's internal/net/ws package: one Handler per surface,
// an Upgrader with CheckOrigin left permissive, and a per-connection
// write mutex so the tick goroutine and the read loop never race on
// the same socket.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"quadball/server/internal/config"
	"quadball/server/internal/protocol"
	"quadball/server/internal/room"
	"quadball/server/internal/token"
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// LobbyHandler serves /ws/lobby: a single long-lived socket per
// browser tab through which a client creates or joins rooms, lists
// open rooms, and adjusts its roster slot before the game starts.
type LobbyHandler struct {
	registry *room.Registry
	issuer   *token.Issuer
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	lobbyBySlot map[string]*lobbyConn // playerID -> conn, for players_updated fanout
	roomMembers map[string][]string   // roomID -> playerIDs with a lobby conn open
}

// NewLobbyHandler builds a lobby handler bound to registry.
func NewLobbyHandler(registry *room.Registry, issuer *token.Issuer, logger *log.Logger) *LobbyHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &LobbyHandler{
		registry:    registry,
		issuer:      issuer,
		logger:      logger,
		upgrader:    newUpgrader(),
		lobbyBySlot: make(map[string]*lobbyConn),
		roomMembers: make(map[string][]string),
	}
}

type lobbyConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *lobbyConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (h *LobbyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("lobby: upgrade failed: %v", err)
		return
	}
	conn := &lobbyConn{conn: rawConn}
	defer rawConn.Close()

	var joinedRoomID, joinedPlayerID string
	defer func() {
		if joinedRoomID != "" {
			h.removeMember(joinedRoomID, joinedPlayerID)
		}
	}()

	for {
		_, payload, err := rawConn.ReadMessage()
		if err != nil {
			return
		}

		var envelope protocol.LobbyEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			h.logger.Printf("lobby: malformed message: %v", err)
			continue
		}

		switch envelope.Type {
		case "create_room":
			var msg protocol.CreateRoomMsg
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			r, slot, err := h.registry.CreateRoom(msg.PlayerName)
			if err != nil {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: err.Error()})
				continue
			}
			joinedRoomID, joinedPlayerID = r.ID(), slot.PlayerID
			h.addMember(r.ID(), slot.PlayerID, conn)
			conn.writeJSON(protocol.RoomCreatedMsg{
				Type:     "room_created",
				RoomID:   r.ID(),
				PlayerID: slot.PlayerID,
				Players:  toRosterPlayers(r.Roster()),
			})

		case "join_room":
			var msg protocol.JoinRoomMsg
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			r, ok := h.registry.Get(msg.RoomID)
			if !ok {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: "room not found"})
				continue
			}
			slot, players, err := r.Join(msg.PlayerName)
			if err != nil {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: err.Error()})
				continue
			}
			joinedRoomID, joinedPlayerID = r.ID(), slot.PlayerID
			h.addMember(r.ID(), slot.PlayerID, conn)
			conn.writeJSON(protocol.JoinSuccessfulMsg{
				Type:     "join_successful",
				RoomID:   r.ID(),
				PlayerID: slot.PlayerID,
				Players:  toRosterPlayers(players),
			})
			h.broadcastPlayersUpdated(r.ID(), players)

		case "list_rooms":
			summaries := h.registry.List()
			out := make([]protocol.RoomSummary, 0, len(summaries))
			for _, s := range summaries {
				if s.Phase != room.PhasePending {
					continue
				}
				out = append(out, protocol.RoomSummary{RoomID: s.RoomID, CreatorName: s.CreatorName, PlayerCount: s.PlayerCount})
			}
			conn.writeJSON(protocol.RoomsListMsg{Type: "rooms_list", Rooms: out})

		case "update_player":
			var msg protocol.UpdatePlayerMsg
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			r, ok := h.registry.Get(msg.RoomID)
			if !ok {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: "room not found"})
				continue
			}
			role, valid := config.ParseRole(msg.Role)
			if !valid {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: "invalid role"})
				continue
			}
			players, err := r.UpdatePlayer(msg.PlayerID, msg.Team, role)
			if err != nil {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: err.Error()})
				continue
			}
			h.broadcastPlayersUpdated(r.ID(), players)

		case "start_game":
			var msg protocol.StartGameMsg
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			r, ok := h.registry.Get(msg.RoomID)
			if !ok {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: "room not found"})
				continue
			}
			if _, err := r.Start(joinedPlayerID); err != nil {
				conn.writeJSON(protocol.JoinFailedMsg{Type: "join_failed", Error: err.Error()})
				continue
			}
			h.broadcastStart(r)

		default:
			h.logger.Printf("lobby: unknown message type %q", envelope.Type)
		}
	}
}

func toRosterPlayers(players []room.RosterPlayer) []protocol.RosterPlayer {
	out := make([]protocol.RosterPlayer, 0, len(players))
	for _, p := range players {
		out = append(out, protocol.RosterPlayer{PlayerID: p.PlayerID, Name: p.Name, Team: p.Team, Role: p.Role})
	}
	return out
}

func (h *LobbyHandler) addMember(roomID, playerID string, conn *lobbyConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lobbyBySlot[playerID] = conn
	h.roomMembers[roomID] = append(h.roomMembers[roomID], playerID)
}

func (h *LobbyHandler) removeMember(roomID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobbyBySlot, playerID)
	members := h.roomMembers[roomID]
	for i, id := range members {
		if id == playerID {
			h.roomMembers[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
}

func (h *LobbyHandler) broadcastPlayersUpdated(roomID string, players []room.RosterPlayer) {
	msg := protocol.PlayersUpdatedMsg{Type: "players_updated", Players: toRosterPlayers(players)}
	h.mu.Lock()
	members := append([]string(nil), h.roomMembers[roomID]...)
	h.mu.Unlock()
	for _, id := range members {
		h.mu.Lock()
		conn := h.lobbyBySlot[id]
		h.mu.Unlock()
		if conn != nil {
			conn.writeJSON(msg)
		}
	}
}

func (h *LobbyHandler) broadcastStart(r *room.Room) {
	h.mu.Lock()
	members := append([]string(nil), h.roomMembers[r.ID()]...)
	conns := make(map[string]*lobbyConn, len(members))
	for _, id := range members {
		conns[id] = h.lobbyBySlot[id]
	}
	h.mu.Unlock()

	for playerID, conn := range conns {
		if conn == nil {
			continue
		}
		tok, err := h.issuer.Issue(r.ID(), playerID)
		if err != nil {
			h.logger.Printf("lobby: issuing token for %s: %v", playerID, err)
			continue
		}
		conn.writeJSON(protocol.StartSuccessfulMsg{Type: "start_successful", RoomID: r.ID(), PlayerID: playerID, Token: tok})
	}
}
