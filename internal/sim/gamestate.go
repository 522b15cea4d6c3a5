package sim

import (
	"fmt"

	"github.com/google/uuid"

	"quadball/server/internal/config"
	"quadball/server/internal/geometry"
)

// InboundState tracks the volleyball inbounding state machine of §4.3.
type InboundState struct {
	Active     bool    `json:"active"`
	BallID     string  `json:"ballId,omitempty"`
	Team       int     `json:"team"`
	SideY      float64 `json:"sideY"`
	DeadlineAt float64 `json:"deadlineAt"`
}

// GameState aggregates every entity plus the clocks and possession
// bookkeeping named in spec §3.
type GameState struct {
	Players map[string]*Player
	Balls   map[string]*Ball
	Hoops   []Hoop

	Score          [2]int
	GameTime       float64
	DelayBin       int
	PossessionCode int // 0 none, 1 team_0, 2 team_1
	Inbound        InboundState

	delayHeldSince    float64
	delayHeldTeam     int
	delayHeldActive   bool

	playerOrder []string
	ballOrder   []string
}

// NewGameState constructs an empty container with insertion-order
// tracking for deterministic wire encoding (spec §3 invariant on map
// iteration order).
func NewGameState() *GameState {
	return &GameState{
		Players: make(map[string]*Player),
		Balls:   make(map[string]*Ball),
	}
}

// PlayerOrder returns player IDs in insertion order.
func (s *GameState) PlayerOrder() []string {
	return s.playerOrder
}

// BallOrder returns ball IDs in insertion order.
func (s *GameState) BallOrder() []string {
	return s.ballOrder
}

// AddPlayer inserts a player, preserving insertion order.
func (s *GameState) AddPlayer(p *Player) {
	if _, exists := s.Players[p.ID]; !exists {
		s.playerOrder = append(s.playerOrder, p.ID)
	}
	s.Players[p.ID] = p
}

// AddBall inserts a ball, preserving insertion order.
func (s *GameState) AddBall(b *Ball) {
	if _, exists := s.Balls[b.ID]; !exists {
		s.ballOrder = append(s.ballOrder, b.ID)
	}
	s.Balls[b.ID] = b
}

// BallHeldBy returns the ball held by playerID, if any.
func (s *GameState) BallHeldBy(playerID string) *Ball {
	for _, id := range s.ballOrder {
		b := s.Balls[id]
		if b != nil && b.HolderID != nil && *b.HolderID == playerID {
			return b
		}
	}
	return nil
}

// Volleyball returns the single volleyball in play.
func (s *GameState) Volleyball() *Ball {
	for _, id := range s.ballOrder {
		if b := s.Balls[id]; b != nil && b.Type == config.BallVolleyball {
			return b
		}
	}
	return nil
}

// Dodgeballs returns the dodgeballs in play, in order.
func (s *GameState) Dodgeballs() []*Ball {
	out := make([]*Ball, 0, 2)
	for _, id := range s.ballOrder {
		if b := s.Balls[id]; b != nil && b.Type == config.BallDodgeball {
			out = append(out, b)
		}
	}
	return out
}

// NewEntityID returns an opaque ID of the form "<prefix>-<uuid>", using a
// random uuid rather than a sequence counter. IDs are assigned once when
// an entity is created; Kickoff resets existing balls rather than
// recreating them.
func NewEntityID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// RosterEntry is the creator-supplied seed for one player at room
// start, per spec §4.2's "creator-supplied roster".
type RosterEntry struct {
	PlayerID string
	Name     string
	Team     int
	Role     config.Role
}

// NewRoom builds the initial GameState for room start, per spec §4.5
// (kickoff) applied to a fresh roster, static hoops, and three balls.
func NewRoom(cfg config.Config, roster []RosterEntry) *GameState {
	state := NewGameState()
	for _, entry := range roster {
		state.AddPlayer(&Player{
			ID:   entry.PlayerID,
			Name: entry.Name,
			Team: entry.Team,
			Role: entry.Role,
		})
	}
	state.Hoops = buildHoops(cfg)

	volleyball := &Ball{ID: NewEntityID("ball"), Type: config.BallVolleyball}
	state.AddBall(volleyball)

	bludger1 := &Ball{ID: NewEntityID("ball"), Type: config.BallDodgeball}
	bludger2 := &Ball{ID: NewEntityID("ball"), Type: config.BallDodgeball}
	state.AddBall(bludger1)
	state.AddBall(bludger2)

	Kickoff(state, cfg)
	return state
}

func buildHoops(cfg config.Config) []Hoop {
	midY := cfg.PitchWidth / 2
	return []Hoop{
		{ID: NewEntityID("hoop"), Team: 0, Position: geometry.Vector2{X: cfg.HoopOffset, Y: midY}, Radius: cfg.HoopRadius, Thickness: cfg.HoopThickness},
		{ID: NewEntityID("hoop"), Team: 1, Position: geometry.Vector2{X: cfg.PitchLength - cfg.HoopOffset, Y: midY}, Radius: cfg.HoopRadius, Thickness: cfg.HoopThickness},
	}
}
