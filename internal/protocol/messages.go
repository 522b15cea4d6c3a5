package protocol

import (
	"fmt"

	"quadball/server/internal/config"
	"quadball/server/internal/sim"
)

// RosterPlayer is the lobby-facing view of one roster slot, per spec
// §6's players arrays.
type RosterPlayer struct {
	PlayerID string      `json:"player_id"`
	Name     string      `json:"name"`
	Team     int         `json:"team"`
	Role     config.Role `json:"role"`
}

// LobbyEnvelope is the minimal shape every lobby message shares: a
// type discriminator. Client payloads are decoded a second time into
// the concrete type once Type is known, mirroring the teacher's
// clientMessage flat-struct decoding rather than a tagged union.
type LobbyEnvelope struct {
	Type string `json:"type"`
}

// Client -> server lobby messages (spec §6).
type CreateRoomMsg struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

type JoinRoomMsg struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

type UpdatePlayerMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Team     int    `json:"team"`
	Role     string `json:"role"`
}

type StartGameMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Server -> client lobby messages.
type RoomCreatedMsg struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"room_id"`
	PlayerID string         `json:"player_id"`
	Players  []RosterPlayer `json:"players"`
}

type JoinSuccessfulMsg struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"room_id"`
	PlayerID string         `json:"player_id"`
	Players  []RosterPlayer `json:"players"`
}

type JoinFailedMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type RoomSummary struct {
	RoomID      string `json:"room_id"`
	CreatorName string `json:"creator_name"`
	PlayerCount int    `json:"player_count"`
}

type RoomsListMsg struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

type PlayersUpdatedMsg struct {
	Type    string         `json:"type"`
	Players []RosterPlayer `json:"players"`
}

// StartSuccessfulMsg additionally carries a signed reconnect token the
// game socket handshake verifies (DOMAIN STACK: internal/token).
type StartSuccessfulMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

// InitialStateMsg is the first frame on the game socket (spec §6):
// the full GameState plus the ID-order arrays binary frames resolve
// against and the active config block.
type InitialStateMsg struct {
	Type        string          `json:"type"`
	PlayersOrder []string       `json:"players_order"`
	BallsOrder   []string       `json:"balls_order"`
	Config      config.Config   `json:"config"`
	State       GameStateView   `json:"state"`
}

// GameStateView is the JSON-friendly projection of sim.GameState used
// only in the initial_state handshake; subsequent updates are binary.
type GameStateView struct {
	Players        []PlayerView `json:"players"`
	Balls          []BallView   `json:"balls"`
	Hoops          []sim.Hoop   `json:"hoops"`
	Score          [2]int       `json:"score"`
	GameTime       float64      `json:"game_time"`
	DelayBin       int          `json:"delay_bin"`
	PossessionCode int          `json:"possession_code"`
}

type PlayerView struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Team          int         `json:"team"`
	Role          config.Role `json:"role"`
	X             float64     `json:"x"`
	Y             float64     `json:"y"`
	VX            float64     `json:"vx"`
	VY            float64     `json:"vy"`
	IsKnockedOut  bool        `json:"is_knocked_out"`
	KnockoutTimer float64     `json:"knockout_timer"`
	HasBall       bool        `json:"has_ball"`
}

type BallView struct {
	ID             string          `json:"id"`
	Type           config.BallType `json:"type"`
	X              float64         `json:"x"`
	Y              float64         `json:"y"`
	VX             float64         `json:"vx"`
	VY             float64         `json:"vy"`
	HolderID       *string         `json:"holder_id,omitempty"`
	IsDead         bool            `json:"is_dead"`
	PossessionTeam *int            `json:"possession_team,omitempty"`
}

// NewGameStateView projects a sim.GameState into its JSON view.
func NewGameStateView(state *sim.GameState) GameStateView {
	view := GameStateView{
		Hoops:          state.Hoops,
		Score:          state.Score,
		GameTime:       state.GameTime,
		DelayBin:       state.DelayBin,
		PossessionCode: state.PossessionCode,
	}
	for _, id := range state.PlayerOrder() {
		p := state.Players[id]
		view.Players = append(view.Players, PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			Team:          p.Team,
			Role:          p.Role,
			X:             p.Position.X,
			Y:             p.Position.Y,
			VX:            p.Velocity.X,
			VY:            p.Velocity.Y,
			IsKnockedOut:  p.IsKnockedOut,
			KnockoutTimer: p.KnockoutTimer,
			HasBall:       p.HasBall(state),
		})
	}
	for _, id := range state.BallOrder() {
		b := state.Balls[id]
		view.Balls = append(view.Balls, BallView{
			ID:             b.ID,
			Type:           b.Type,
			X:              b.Position.X,
			Y:              b.Position.Y,
			VX:             b.Velocity.X,
			VY:             b.Velocity.Y,
			HolderID:       b.HolderID,
			IsDead:         b.IsDead,
			PossessionTeam: b.PossessionTeam,
		})
	}
	return view
}

// GameEnvelope is the type discriminator shared by every text frame a
// game socket client can send, mirroring LobbyEnvelope's two-pass
// decode on the other surface.
type GameEnvelope struct {
	Type string `json:"type"`
}

// ThrowMsg is the JSON frame a game socket client sends to request a
// throw (spec §6).
type ThrowMsg struct {
	Type string `json:"type"`
}

// HeartbeatMsg is the client's keepalive frame, carrying its own send
// time so the server can measure round-trip latency. Grounded on the
// teacher's clientMessage.SentAt / heartbeatMessage pair.
type HeartbeatMsg struct {
	Type   string `json:"type"`
	SentAt int64  `json:"sentAt"`
}

// HeartbeatAckMsg is the server's reply to a HeartbeatMsg: its own
// clock, an echo of the client's, and the measured RTT in
// milliseconds.
type HeartbeatAckMsg struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// DecodeMovementFrame parses the 4-byte binary movement-intent frame:
// two half-floats, dx then dy, little-endian.
func DecodeMovementFrame(data []byte) (dx, dy float64, err error) {
	if len(data) != 4 {
		return 0, 0, fmt.Errorf("protocol: movement frame must be 4 bytes, got %d", len(data))
	}
	dx = HalfToFloat64(readU16(data[0:2]))
	dy = HalfToFloat64(readU16(data[2:4]))
	return dx, dy, nil
}

// EncodeMovementFrame is the client-side counterpart, kept here so
// integration tests can build fixtures without duplicating the bit
// layout.
func EncodeMovementFrame(dx, dy float64) []byte {
	buf := make([]byte, 0, 4)
	buf = appendU16(buf, HalfFromFloat64(dx))
	buf = appendU16(buf, HalfFromFloat64(dy))
	return buf
}
