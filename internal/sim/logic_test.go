package sim

import (
	"testing"

	"quadball/server/internal/config"
	"quadball/server/internal/geometry"
)

func newTestRoom() (*GameState, config.Config) {
	cfg := config.Default()
	roster := []RosterEntry{
		{PlayerID: "home-keeper", Name: "Home Keeper", Team: 0, Role: config.RoleKeeper},
		{PlayerID: "home-chaser", Name: "Home Chaser", Team: 0, Role: config.RoleChaser},
		{PlayerID: "home-beater", Name: "Home Beater", Team: 0, Role: config.RoleBeater},
		{PlayerID: "away-keeper", Name: "Away Keeper", Team: 1, Role: config.RoleKeeper},
		{PlayerID: "away-chaser", Name: "Away Chaser", Team: 1, Role: config.RoleChaser},
		{PlayerID: "away-beater", Name: "Away Beater", Team: 1, Role: config.RoleBeater},
	}
	return NewRoom(cfg, roster), cfg
}

func noInputs() Inputs {
	return Inputs{Movement: map[string]geometry.Vector2{}}
}

func TestKickoffPlacesPlayersOnOwnHalf(t *testing.T) {
	state, cfg := newTestRoom()
	for _, id := range state.PlayerOrder() {
		p := state.Players[id]
		mid := cfg.PitchLength / 2
		if p.Team == 0 && p.Position.X > mid {
			t.Errorf("player %s on team 0 placed on opposing half: x=%v", id, p.Position.X)
		}
		if p.Team == 1 && p.Position.X < mid {
			t.Errorf("player %s on team 1 placed on opposing half: x=%v", id, p.Position.X)
		}
	}
	v := state.Volleyball()
	if v.Position.X != cfg.PitchLength/2 || v.Position.Y != cfg.PitchWidth/2 {
		t.Errorf("expected volleyball centered at kickoff, got %+v", v.Position)
	}
}

func TestGoalIncrementsScoreAndResetsKickoff(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	thrower := state.Players["home-chaser"]
	v := state.Volleyball()
	holder := thrower.ID
	v.HolderID = &holder
	v.PossessionTeam = &thrower.Team

	// Place the ball just shy of the away hoop, moving straight through it.
	awayHoop := state.Hoops[1]
	v.HolderID = nil
	v.Position = geometry.Vector2{X: awayHoop.Position.X - 0.5, Y: awayHoop.Position.Y}
	v.Velocity = geometry.Vector2{X: 10, Y: 0}
	v.LastThrowerID = &thrower.ID
	team0 := 0
	v.PossessionTeam = &team0
	state.PossessionCode = 1

	// Kickoff puts the away keeper on the hoop centre; move it clear so it
	// does not catch the ball, since pickup runs before goal detection.
	state.Players["away-keeper"].Position = geometry.Vector2{X: awayHoop.Position.X, Y: awayHoop.Position.Y + 5}

	events := Step(state, cfg, dt, noInputs())

	if state.Score[0] != 1 {
		t.Fatalf("expected team 0 to score, got score %v", state.Score)
	}
	foundGoal := false
	for _, e := range events {
		if e.Kind == EventGoal && e.Team == 0 {
			foundGoal = true
		}
	}
	if !foundGoal {
		t.Error("expected a goal event for team 0")
	}
	// Kickoff should have re-centered the volleyball.
	newV := state.Volleyball()
	if newV.Position.X != cfg.PitchLength/2 {
		t.Errorf("expected re-kickoff after goal, got ball at %+v", newV.Position)
	}
}

func TestOwnHoopCrossingDoesNotScore(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	homeHoop := state.Hoops[0]
	v := state.Volleyball()
	v.Position = geometry.Vector2{X: homeHoop.Position.X + 0.5, Y: homeHoop.Position.Y}
	v.Velocity = geometry.Vector2{X: -10, Y: 0}
	team0 := 0
	v.PossessionTeam = &team0
	state.PossessionCode = 1

	Step(state, cfg, dt, noInputs())

	if state.Score[0] != 0 || state.Score[1] != 0 {
		t.Fatalf("expected no goal for either team on own-hoop crossing, got %v", state.Score)
	}
}

func TestKnockoutDropsHeldVolleyballAndStartsTimer(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	target := state.Players["away-chaser"]
	v := state.Volleyball()
	holder := target.ID
	v.HolderID = &holder
	team1 := 1
	v.PossessionTeam = &team1

	thrower := state.Players["home-beater"]
	dodgeball := state.Dodgeballs()[0]
	dodgeball.Position = target.Position
	dodgeball.Velocity = geometry.Vector2{}
	dodgeball.LastThrowerID = &thrower.ID

	Step(state, cfg, dt, noInputs())

	if !target.IsKnockedOut {
		t.Fatal("expected target to be knocked out")
	}
	if target.KnockoutTimer <= 0 {
		t.Fatal("expected a running knockout timer")
	}
	if v.Held() {
		t.Fatal("expected the volleyball to drop on knockout")
	}
	if v.PossessionTeam == nil || *v.PossessionTeam != 1 {
		t.Fatal("expected possession to remain with the holding team after a drop")
	}
}

func TestKnockoutTimerExpiresAndClearsFlag(t *testing.T) {
	state, cfg := newTestRoom()
	target := state.Players["away-chaser"]
	target.IsKnockedOut = true
	target.KnockoutTimer = cfg.DT() / 2 // expires within one tick

	Step(state, cfg, cfg.DT(), noInputs())

	if target.IsKnockedOut {
		t.Fatal("expected knockout to clear once the timer elapses")
	}
}

func TestKeeperImmuneInOwnZone(t *testing.T) {
	state, cfg := newTestRoom()
	keeper := state.Players["home-keeper"]
	keeper.Position = geometry.Vector2{X: 1, Y: cfg.PitchWidth / 2}

	if !keeper.Immune(cfg) {
		t.Fatal("expected keeper standing in own zone to be immune")
	}

	keeper.Position = geometry.Vector2{X: cfg.PitchLength / 2, Y: cfg.PitchWidth / 2}
	if keeper.Immune(cfg) {
		t.Fatal("expected keeper outside own zone to not be immune")
	}
}

func TestDelayOfGameForcesTurnoverAtCap(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	v := state.Volleyball()
	chaser := state.Players["home-chaser"]
	holder := chaser.ID
	v.HolderID = &holder
	team0 := 0
	v.PossessionTeam = &team0
	// A held ball follows its holder, so the holder stands in the central band.
	chaser.Position = geometry.Vector2{X: cfg.PitchLength / 2, Y: cfg.PitchWidth / 2}
	v.Position = chaser.Position

	// Simulate enough stalled ticks to exceed the delay cap, stopping at the
	// turnover tick before the released ball can be picked up again.
	seconds := cfg.DelayCap + 1
	ticks := int(float64(seconds) / dt)
	var lastEvents []Event
	for i := 0; i < ticks; i++ {
		lastEvents = Step(state, cfg, dt, noInputs())
		if v.PossessionTeam != nil && *v.PossessionTeam != team0 {
			break
		}
	}

	foundTurnover := false
	for _, e := range lastEvents {
		if e.Kind == EventTurnover {
			foundTurnover = true
		}
	}
	if !foundTurnover && v.PossessionTeam != nil && *v.PossessionTeam == team0 {
		t.Fatal("expected a turnover once the delay cap is reached")
	}
}

func TestInboundTriggeredOnSideLineExit(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	v := state.Volleyball()
	v.Position = geometry.Vector2{X: cfg.PitchLength / 2, Y: cfg.PitchWidth - 0.1}
	v.Velocity = geometry.Vector2{X: 0, Y: 10}

	events := Step(state, cfg, dt, noInputs())

	foundInbound := false
	for _, e := range events {
		if e.Kind == EventInboundTriggered {
			foundInbound = true
		}
	}
	if !foundInbound {
		t.Fatal("expected an inbound_triggered event on side-line exit")
	}
	if !state.Inbound.Active {
		t.Fatal("expected inbound state to be active")
	}
}

func TestDisconnectedPlayerIsPausedLikeKnockout(t *testing.T) {
	state, cfg := newTestRoom()
	p := state.Players["home-chaser"]
	p.Disconnected = true
	p.Velocity = geometry.Vector2{X: 5, Y: 0}

	inputs := Inputs{Movement: map[string]geometry.Vector2{p.ID: {X: 1, Y: 0}}}
	Step(state, cfg, cfg.DT(), inputs)

	if p.DesiredDir != (geometry.Vector2{}) {
		t.Error("expected a disconnected player's input to be ignored")
	}
	if p.Velocity != (geometry.Vector2{}) {
		t.Error("expected a disconnected player's velocity to be zeroed")
	}
	if p.IsKnockedOut {
		t.Error("disconnect should not set the timed-knockout flag")
	}
}

func TestReconnectClearsDisconnectedButNotKnockout(t *testing.T) {
	p := &Player{ID: "x", Disconnected: true, IsKnockedOut: true}
	if !p.Paused() {
		t.Fatal("expected paused while disconnected and knocked out")
	}
	p.Disconnected = false
	if !p.Paused() {
		t.Fatal("expected still paused while knockout timer is running")
	}
	p.IsKnockedOut = false
	if p.Paused() {
		t.Fatal("expected not paused once both flags clear")
	}
}

func TestThrowReleasesHeldBall(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()

	thrower := state.Players["home-chaser"]
	v := state.Volleyball()
	holder := thrower.ID
	v.HolderID = &holder
	thrower.DesiredDir = geometry.Vector2{X: 1, Y: 0}

	events := Step(state, cfg, dt, Inputs{Movement: map[string]geometry.Vector2{}, Throws: []string{thrower.ID}})

	if v.Held() {
		t.Fatal("expected the ball to be released after a throw")
	}
	if v.Velocity.Magnitude() == 0 {
		t.Fatal("expected the ball to have velocity after being thrown")
	}
	found := false
	for _, e := range events {
		if e.PlayerID == thrower.ID && e.BallID == v.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected a throw event for the thrower")
	}
}

func TestThrowFromPlayerWithoutBallIsNoOp(t *testing.T) {
	state, cfg := newTestRoom()
	dt := cfg.DT()
	thrower := state.Players["home-chaser"]

	before := *state.Volleyball()
	Step(state, cfg, dt, Inputs{Movement: map[string]geometry.Vector2{}, Throws: []string{thrower.ID}})
	after := state.Volleyball()

	if after.Velocity != before.Velocity {
		t.Error("expected no effect from a throw by a player not holding the ball")
	}
}
