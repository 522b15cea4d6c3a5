package sim

import (
	"quadball/server/internal/config"
	"quadball/server/internal/geometry"
)

// Kickoff arranges both rosters on their own halves, resets the balls
// to their starting positions, and clears knockouts and delay/possession
// bookkeeping, per spec §4.5. Called at room start and after each goal.
func Kickoff(state *GameState, cfg config.Config) {
	byTeam := map[int][]*Player{0: nil, 1: nil}
	for _, id := range state.playerOrder {
		p := state.Players[id]
		byTeam[p.Team] = append(byTeam[p.Team], p)
	}
	for team, players := range byTeam {
		arrangeTeam(players, team, cfg)
	}

	if v := state.Volleyball(); v != nil {
		v.Position = geometry.Vector2{X: cfg.PitchLength / 2, Y: cfg.PitchWidth / 2}
		v.Velocity = geometry.Vector2{}
		v.HolderID = nil
		v.IsDead = false
		v.LastThrowerID = nil
		v.PossessionTeam = nil
	}

	dodgeballs := state.Dodgeballs()
	positions := []geometry.Vector2{
		{X: cfg.KeeperZoneX, Y: cfg.PitchWidth / 4},
		{X: cfg.PitchLength - cfg.KeeperZoneX, Y: 3 * cfg.PitchWidth / 4},
	}
	for i, b := range dodgeballs {
		if i >= len(positions) {
			break
		}
		b.Position = positions[i]
		b.Velocity = geometry.Vector2{}
		b.HolderID = nil
		b.IsDead = false
		b.LastThrowerID = nil
	}

	state.DelayBin = 0
	state.PossessionCode = 0
	state.Inbound = InboundState{}
	state.delayHeldActive = false
}

// arrangeTeam lays out one team's roster mirrored on its own half:
// keeper at the own hoop, chasers in a triangle in front, beaters
// flanking, the seeker at the rear.
func arrangeTeam(players []*Player, team int, cfg config.Config) {
	ownHoopX := cfg.HoopOffset
	dir := 1.0
	if team == 1 {
		ownHoopX = cfg.PitchLength - cfg.HoopOffset
		dir = -1.0
	}
	midY := cfg.PitchWidth / 2

	var keeper *Player
	var chasers []*Player
	var beaters []*Player
	var seeker *Player
	for _, p := range players {
		switch p.Role {
		case config.RoleKeeper:
			keeper = p
		case config.RoleBeater:
			beaters = append(beaters, p)
		case config.RoleSeeker:
			seeker = p
		default:
			chasers = append(chasers, p)
		}
	}

	place := func(p *Player, pos geometry.Vector2) {
		p.Position = pos.Clamp(0, 0, cfg.PitchLength, cfg.PitchWidth)
		p.Velocity = geometry.Vector2{}
		p.DesiredDir = geometry.Vector2{}
		p.IsKnockedOut = false
		p.KnockoutTimer = 0
	}

	if keeper != nil {
		place(keeper, geometry.Vector2{X: ownHoopX, Y: midY})
	}
	triangleDepth := []float64{6, 10, 10}
	triangleSpread := []float64{0, -4, 4}
	for i, c := range chasers {
		if i >= len(triangleDepth) {
			i = len(triangleDepth) - 1
		}
		place(c, geometry.Vector2{X: ownHoopX + dir*triangleDepth[i], Y: midY + triangleSpread[i]})
	}
	for i, b := range beaters {
		side := -8.0
		if i%2 == 1 {
			side = 8.0
		}
		place(b, geometry.Vector2{X: ownHoopX + dir*12, Y: midY + side})
	}
	if seeker != nil {
		place(seeker, geometry.Vector2{X: ownHoopX + dir*18, Y: midY})
	}
}
