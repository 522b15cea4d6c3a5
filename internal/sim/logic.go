package sim

import (
	"quadball/server/internal/config"
	"quadball/server/internal/geometry"
)

// Inputs bundles the per-tick intents drained from a room's input
// queue, coalesced for movement and ordered for throws per spec §5.
type Inputs struct {
	// Movement holds the most recent (dx, dy) per player this tick;
	// coalescing happened before Step was called.
	Movement map[string]geometry.Vector2
	// Throws lists player IDs requesting a throw, in arrival order.
	// Not coalesced: every entry is processed.
	Throws []string
}

// EventKind names a notable tick-level occurrence worth logging or
// broadcasting out of band.
type EventKind string

const (
	EventGoal             EventKind = "goal"
	EventKnockout         EventKind = "knockout"
	EventTurnover         EventKind = "turnover"
	EventInboundTriggered EventKind = "inbound_triggered"
	EventBeatDead         EventKind = "beat"
)

// Event is a notable occurrence produced by a single Step call.
type Event struct {
	Kind     EventKind
	PlayerID string
	BallID   string
	Team     int
}

// Step advances state by dt, applying phases A through L in order, as
// specified in spec §4.1. Returns notable events for logging/telemetry.
func Step(state *GameState, cfg config.Config, dt float64, inputs Inputs) []Event {
	var events []Event

	applyInputs(state, inputs)
	stepPlayerKinematics(state, cfg, dt)
	followHeldBalls(state)
	events = append(events, applyThrows(state, cfg, inputs.Throws)...)
	events = append(events, stepFreeBalls(state, cfg, dt)...)
	events = append(events, pickups(state, cfg)...)
	events = append(events, beats(state, cfg)...)
	events = append(events, goals(state, cfg)...)
	resolvePlayerCollisions(state, cfg)
	events = append(events, delayOfGame(state, cfg, dt)...)
	state.GameTime += dt

	return events
}

// Phase A — apply inputs.
func applyInputs(state *GameState, inputs Inputs) {
	for _, id := range state.playerOrder {
		p := state.Players[id]
		if p.Paused() {
			continue
		}
		if v, ok := inputs.Movement[id]; ok {
			p.DesiredDir = v.Normalize()
		}
	}
}

// Phase B — player kinematics.
func stepPlayerKinematics(state *GameState, cfg config.Config, dt float64) {
	for _, id := range state.playerOrder {
		p := state.Players[id]

		if p.Disconnected {
			p.Velocity = geometry.Vector2{}
		} else if p.IsKnockedOut {
			p.Velocity = geometry.Vector2{}
			p.KnockoutTimer -= dt
			if p.KnockoutTimer <= 0 {
				p.KnockoutTimer = 0
				p.IsKnockedOut = false
			}
		} else {
			targetVelocity := p.DesiredDir.Scale(cfg.MaxSpeed(p.Role))
			p.Velocity = p.Velocity.Lerp(targetVelocity, cfg.AccelFactor*dt)
		}

		proposed := p.Position.Add(p.Velocity.Scale(dt))
		clamped := proposed.Clamp(0, 0, cfg.PitchLength, cfg.PitchWidth)
		if clamped.X != proposed.X {
			p.Velocity.X = 0
		}
		if clamped.Y != proposed.Y {
			p.Velocity.Y = 0
		}
		p.Position = clamped
	}
}

// Phase C — held balls follow their holder.
func followHeldBalls(state *GameState) {
	for _, id := range state.ballOrder {
		b := state.Balls[id]
		if b.HolderID == nil {
			continue
		}
		holder, ok := state.Players[*b.HolderID]
		if !ok {
			b.HolderID = nil
			continue
		}
		b.Position = holder.Position
		b.Velocity = holder.Velocity
	}
}

// Phase D — throws. Each buffered throw from a player holding a ball
// releases it; a throw from a player not holding a ball is dropped.
func applyThrows(state *GameState, cfg config.Config, throws []string) []Event {
	var events []Event
	for _, playerID := range throws {
		p, ok := state.Players[playerID]
		if !ok || p.Paused() {
			continue
		}
		ball := state.BallHeldBy(playerID)
		if ball == nil {
			continue
		}

		dir := p.DesiredDir
		if dir.IsZero() {
			dir = geometry.Vector2{X: 1}
			if p.Team == 0 {
				dir = geometry.Vector2{X: 1}
			} else {
				dir = geometry.Vector2{X: -1}
			}
		}

		wasKeeperOwnZone := p.Role == config.RoleKeeper && p.inOwnKeeperZone(cfg)

		ball.HolderID = nil
		ball.Velocity = dir.Scale(cfg.ThrowSpeed(ball.Type))
		thrower := p.ID
		ball.LastThrowerID = &thrower
		offset := cfg.PlayerRadius + ballRadius(cfg, ball.Type) + 1e-3
		ball.Position = p.Position.Add(dir.Scale(offset))

		if ball.Type == config.BallVolleyball {
			team := p.Team
			ball.PossessionTeam = &team
			state.PossessionCode = possessionCode(team)
			state.DelayBin = 0
			state.delayHeldActive = false
			if wasKeeperOwnZone {
				ball.selfOwnVoidUntil = state.GameTime + cfg.SelfOwnWindow.Seconds()
			}
		}

		events = append(events, Event{Kind: EventKind("throw"), PlayerID: playerID, BallID: ball.ID})
	}
	return events
}

func ballRadius(cfg config.Config, bt config.BallType) float64 {
	if bt == config.BallDodgeball {
		return cfg.DodgeballRadius
	}
	return cfg.VolleyballRadius
}

func possessionCode(team int) int {
	if team == 0 {
		return 1
	}
	return 2
}

// Phase E — free-ball kinematics: drag, wall reflection, side-line exit.
func stepFreeBalls(state *GameState, cfg config.Config, dt float64) []Event {
	var events []Event
	for _, id := range state.ballOrder {
		b := state.Balls[id]
		if b.Held() {
			continue
		}

		prev := b.Position
		b.prevPosition = prev
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
		b.Velocity = b.Velocity.Scale(1 - cfg.FreeBallDrag*dt)

		if b.Type == config.BallDodgeball {
			reflectAllWalls(b, cfg)
			continue
		}

		// Volleyball: reflect off long walls (x = 0, x = PitchLength),
		// trigger inbounding on side-line exit (y outside [0, PitchWidth]).
		if b.Position.X < 0 {
			b.Position.X = -b.Position.X
			b.Velocity.X = -b.Velocity.X * cfg.WallRestitution
		} else if b.Position.X > cfg.PitchLength {
			b.Position.X = 2*cfg.PitchLength - b.Position.X
			b.Velocity.X = -b.Velocity.X * cfg.WallRestitution
		}

		if b.Position.Y < 0 || b.Position.Y > cfg.PitchWidth {
			triggerInbound(state, cfg, b, prev)
			events = append(events, Event{Kind: EventInboundTriggered, BallID: b.ID, Team: state.Inbound.Team})
		}
	}
	return events
}

func reflectAllWalls(b *Ball, cfg config.Config) {
	if b.Position.X < 0 {
		b.Position.X = -b.Position.X
		b.Velocity.X = -b.Velocity.X * cfg.WallRestitution
	} else if b.Position.X > cfg.PitchLength {
		b.Position.X = 2*cfg.PitchLength - b.Position.X
		b.Velocity.X = -b.Velocity.X * cfg.WallRestitution
	}
	if b.Position.Y < 0 {
		b.Position.Y = -b.Position.Y
		b.Velocity.Y = -b.Velocity.Y * cfg.WallRestitution
	} else if b.Position.Y > cfg.PitchWidth {
		b.Position.Y = 2*cfg.PitchWidth - b.Position.Y
		b.Velocity.Y = -b.Velocity.Y * cfg.WallRestitution
	}
}

// triggerInbound implements the InPlay -> Inbounding transition of §4.3.
func triggerInbound(state *GameState, cfg config.Config, b *Ball, prev geometry.Vector2) {
	team := 0
	if b.PossessionTeam != nil {
		team = 1 - *b.PossessionTeam
	} else if b.LastThrowerID != nil {
		if thrower, ok := state.Players[*b.LastThrowerID]; ok {
			team = 1 - thrower.Team
		}
	}

	sideY := 0.0
	if b.Position.Y > cfg.PitchWidth {
		sideY = cfg.PitchWidth
	}

	b.Position = geometry.Vector2{X: geometry.Clamp(b.Position.X, 0, cfg.PitchLength), Y: sideY}
	b.Velocity = geometry.Vector2{}

	state.Inbound = InboundState{
		Active:     true,
		BallID:     b.ID,
		Team:       team,
		SideY:      sideY,
		DeadlineAt: state.GameTime + cfg.InboundWindow.Seconds(),
	}
}

// Phase F — pickup.
func pickups(state *GameState, cfg config.Config) []Event {
	var events []Event
	for _, bid := range state.ballOrder {
		b := state.Balls[bid]
		if b.Held() || b.IsDead {
			continue
		}
		for _, pid := range state.playerOrder {
			p := state.Players[pid]
			if p.Paused() || p.HasBall(state) {
				continue
			}
			if b.Type == config.BallVolleyball {
				if state.Inbound.Active && state.Inbound.BallID == b.ID {
					if p.Team != state.Inbound.Team && state.GameTime < state.Inbound.DeadlineAt {
						continue
					}
				}
				if isGoaltendingBlocked(state, cfg, p, b) {
					continue
				}
			}
			if p.Position.Distance(b.Position) > cfg.PlayerRadius+ballRadius(cfg, b.Type) {
				continue
			}

			holder := p.ID
			b.HolderID = &holder
			b.Velocity = geometry.Vector2{}
			if b.Type == config.BallVolleyball {
				team := p.Team
				b.PossessionTeam = &team
				state.PossessionCode = possessionCode(team)
				state.DelayBin = 0
				state.delayHeldActive = false
				state.Inbound = InboundState{}
			}
			events = append(events, Event{Kind: EventKind("pickup"), PlayerID: p.ID, BallID: b.ID})
			break
		}
	}
	return events
}

// isGoaltendingBlocked implements Phase K: a chaser of the hoop's own
// team cannot pick up a free volleyball within goaltendingRadius of
// their own hoop.
func isGoaltendingBlocked(state *GameState, cfg config.Config, p *Player, b *Ball) bool {
	if p.Role != config.RoleChaser {
		return false
	}
	for _, h := range state.Hoops {
		if h.Team != p.Team {
			continue
		}
		if b.Position.Distance(h.Position) <= cfg.GoaltendingRadius {
			return true
		}
	}
	return false
}

// Phase G — dodgeball hits (beats).
func beats(state *GameState, cfg config.Config) []Event {
	var events []Event
	for _, bid := range state.ballOrder {
		b := state.Balls[bid]
		if b.Type != config.BallDodgeball {
			continue
		}

		if b.IsDead {
			// A dead dodgeball reactivates when touched by any
			// beater; ownership of the beat transfers to them.
			for _, pid := range state.playerOrder {
				p := state.Players[pid]
				if p.Role != config.RoleBeater || p.Paused() {
					continue
				}
				if p.Position.Distance(b.Position) <= cfg.PlayerRadius+cfg.DodgeballRadius {
					b.IsDead = false
					owner := p.ID
					b.LastThrowerID = &owner
					break
				}
			}
			continue
		}

		if b.LastThrowerID == nil {
			continue
		}
		thrower, ok := state.Players[*b.LastThrowerID]
		if !ok {
			continue
		}

		for _, pid := range state.playerOrder {
			p := state.Players[pid]
			if p.ID == thrower.ID || p.Team == thrower.Team || p.Paused() {
				continue
			}
			if p.Immune(cfg) {
				continue
			}
			if p.Position.Distance(b.Position) > cfg.PlayerRadius+cfg.DodgeballRadius {
				continue
			}

			p.IsKnockedOut = true
			p.KnockoutTimer = cfg.KnockoutDuration.Seconds()
			if held := state.BallHeldBy(p.ID); held != nil && held.Type == config.BallVolleyball {
				held.HolderID = nil
				held.Position = p.Position
				held.Velocity = p.Velocity.Scale(0.5)
				// possession_team is intentionally left unchanged: the
				// holding team keeps possession per spec §4.1 Phase G.
			}
			p.Velocity = geometry.Vector2{}

			b.IsDead = true
			b.Velocity = geometry.Vector2{}

			events = append(events, Event{Kind: EventKnockout, PlayerID: p.ID, BallID: b.ID, Team: thrower.Team})
			events = append(events, Event{Kind: EventBeatDead, BallID: b.ID})
			break
		}
	}
	return events
}

// Phase H — goal detection.
func goals(state *GameState, cfg config.Config) []Event {
	var events []Event
	v := state.Volleyball()
	if v == nil || v.Held() {
		return events
	}

	for _, hoop := range state.Hoops {
		if !ballCrossedHoopPlane(v.prevPosition, v.Position, hoop) {
			continue
		}
		if state.PossessionCode == 0 {
			continue
		}
		scoringTeam := state.PossessionCode - 1
		if hoop.Team == scoringTeam {
			continue // crossing own hoop's plane does not score
		}
		if state.GameTime < v.selfOwnVoidUntil {
			continue
		}

		state.Score[scoringTeam]++
		events = append(events, Event{Kind: EventGoal, Team: scoringTeam, BallID: v.ID})
		Kickoff(state, cfg)
		return events
	}
	return events
}

// ballCrossedHoopPlane checks whether the segment from prev to curr
// crosses the hoop's vertical plane (x = hoop.Position.X, widened by
// half the hoop thickness) within hoop.Radius of the hoop's center.
func ballCrossedHoopPlane(prev, curr geometry.Vector2, hoop Hoop) bool {
	if prev == curr {
		return false
	}
	half := hoop.Thickness / 2
	lo, hi := hoop.Position.X-half, hoop.Position.X+half
	minX, maxX := prev.X, curr.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if maxX < lo || minX > hi {
		return false
	}

	dx := curr.X - prev.X
	if dx == 0 {
		return absFloat(prev.Y-hoop.Position.Y) <= hoop.Radius
	}
	t := (hoop.Position.X - prev.X) / dx
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	y := prev.Y + (curr.Y-prev.Y)*t
	return absFloat(y-hoop.Position.Y) <= hoop.Radius
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Phase I — player-player collisions. Knocked-out players act as
// static obstacles: they still absorb the normal-component exchange
// but their own velocity stays zero (set in Phase B).
func resolvePlayerCollisions(state *GameState, cfg config.Config) {
	ids := state.playerOrder
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			p1 := state.Players[ids[i]]
			p2 := state.Players[ids[j]]

			delta := p2.Position.Sub(p1.Position)
			dist := delta.Magnitude()
			minDist := 2 * cfg.PlayerRadius
			if dist >= minDist || dist < geometry.Epsilon {
				continue
			}

			normal := delta.Normalize()
			overlap := (minDist - dist) / 2

			if !p1.Paused() {
				p1.Position = p1.Position.Sub(normal.Scale(overlap))
			}
			if !p2.Paused() {
				p2.Position = p2.Position.Add(normal.Scale(overlap))
			}
			p1.Position = p1.Position.Clamp(0, 0, cfg.PitchLength, cfg.PitchWidth)
			p2.Position = p2.Position.Clamp(0, 0, cfg.PitchLength, cfg.PitchWidth)

			relVel := p1.Velocity.Sub(p2.Velocity)
			normalSpeed := relVel.Dot(normal)
			if normalSpeed > 0 {
				continue
			}
			impulse := normal.Scale(normalSpeed)
			if !p1.Paused() {
				p1.Velocity = p1.Velocity.Sub(impulse)
			}
			if !p2.Paused() {
				p2.Velocity = p2.Velocity.Add(impulse)
			}
		}
	}
}

// Phase J — delay of game. Tracks continuous possession of the
// volleyball by one team inside the central band; escalates delayBin
// once per full second of stalling and forces a turnover at the cap.
func delayOfGame(state *GameState, cfg config.Config, dt float64) []Event {
	v := state.Volleyball()
	if v == nil || !v.Held() || v.PossessionTeam == nil {
		state.delayHeldActive = false
		return nil
	}

	lo, hi := cfg.KeeperZoneX, cfg.PitchLength-cfg.KeeperZoneX
	inBand := v.Position.X >= lo && v.Position.X <= hi
	if !inBand {
		state.delayHeldActive = false
		return nil
	}

	team := *v.PossessionTeam
	if !state.delayHeldActive || state.delayHeldTeam != team {
		state.delayHeldActive = true
		state.delayHeldTeam = team
		state.delayHeldSince = state.GameTime
		return nil
	}

	held := state.GameTime - state.delayHeldSince
	expectedBin := int(held)
	if expectedBin > state.DelayBin {
		state.DelayBin = expectedBin
	}

	if state.DelayBin >= cfg.DelayCap {
		v.HolderID = nil
		v.Velocity = geometry.Vector2{}
		opposing := 1 - team
		v.PossessionTeam = &opposing
		state.PossessionCode = possessionCode(opposing)
		state.DelayBin = 0
		state.delayHeldActive = false
		return []Event{{Kind: EventTurnover, Team: opposing, BallID: v.ID}}
	}
	return nil
}
