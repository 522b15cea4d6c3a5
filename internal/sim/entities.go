// Package sim implements the authoritative game-state data model and the
// per-tick rules engine (spec §3, §4.1).
package sim

import (
	"quadball/server/internal/config"
	"quadball/server/internal/geometry"
)

// Player is the server's authoritative record for one roster member.
// Mirrors the teacher's playerState: embedded public fields plus
// server-only bookkeeping (desired direction, knockout timer).
type Player struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Team          int              `json:"team"`
	Role          config.Role      `json:"role"`
	Position      geometry.Vector2 `json:"position"`
	Velocity      geometry.Vector2 `json:"velocity"`
	DesiredDir    geometry.Vector2 `json:"-"`
	IsKnockedOut  bool             `json:"isKnockedOut"`
	KnockoutTimer float64          `json:"knockoutTimer"`

	// Disconnected marks a player whose game socket dropped (spec §5):
	// paused in place like a knockout, but not on a timer, and cleared
	// only by a reconnect presenting the same player_id.
	Disconnected bool `json:"-"`
}

// Paused reports whether p should be treated as inert this tick:
// knocked out or disconnected. Both states zero velocity and exclude
// the player from pickups and beats.
func (p *Player) Paused() bool {
	return p.IsKnockedOut || p.Disconnected
}

// HasBall reports whether any ball in state is held by p.
func (p *Player) HasBall(state *GameState) bool {
	if state == nil {
		return false
	}
	for _, id := range state.ballOrder {
		if b := state.Balls[id]; b != nil && b.HolderID != nil && *b.HolderID == p.ID {
			return true
		}
	}
	return false
}

// Immune reports whether p is a keeper standing inside their own keeper
// zone, per the GLOSSARY's keeper-zone definition.
func (p *Player) Immune(cfg config.Config) bool {
	if p.Role != config.RoleKeeper {
		return false
	}
	return p.inOwnKeeperZone(cfg)
}

func (p *Player) inOwnKeeperZone(cfg config.Config) bool {
	if p.Team == 0 {
		return p.Position.X <= cfg.KeeperZoneX
	}
	return p.Position.X >= cfg.PitchLength-cfg.KeeperZoneX
}

// Ball is the server's authoritative record for a volleyball or
// dodgeball.
type Ball struct {
	ID              string           `json:"id"`
	Type            config.BallType  `json:"type"`
	Position        geometry.Vector2 `json:"position"`
	Velocity        geometry.Vector2 `json:"velocity"`
	HolderID       *string         `json:"holderId,omitempty"`
	IsDead         bool            `json:"isDead"`
	LastThrowerID  *string         `json:"lastThrowerId,omitempty"`
	PossessionTeam *int            `json:"possessionTeam,omitempty"`

	// selfOwnVoidUntil holds the game_time before which a goal scored
	// by this ball is void, set when a keeper releases it from inside
	// their own zone (spec §4.1 Phase H self-own protection).
	selfOwnVoidUntil float64

	// prevPosition is the free-ball position before the current tick's
	// Phase E movement, used by Phase H's segment-vs-hoop intersection.
	prevPosition geometry.Vector2
}

// Held reports whether the ball currently has a holder.
func (b *Ball) Held() bool {
	return b.HolderID != nil
}

// Hoop is a static scoring target belonging to one team.
type Hoop struct {
	ID        string           `json:"id"`
	Team      int              `json:"team"`
	Position  geometry.Vector2 `json:"position"`
	Radius    float64          `json:"radius"`
	Thickness float64          `json:"thickness"`
}
