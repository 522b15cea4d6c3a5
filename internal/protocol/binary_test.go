package protocol

import (
	"testing"

	"quadball/server/internal/config"
	"quadball/server/internal/sim"
)

func newFixtureState() *sim.GameState {
	cfg := config.Default()
	roster := []sim.RosterEntry{
		{PlayerID: "p1", Name: "Alice", Team: 0, Role: config.RoleChaser},
		{PlayerID: "p2", Name: "Bob", Team: 1, Role: config.RoleKeeper},
	}
	return sim.NewRoom(cfg, roster)
}

func TestEncodeDecodeVersion1RoundTrip(t *testing.T) {
	state := newFixtureState()
	data, err := EncodeState(state, Version1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != Version1 {
		t.Fatalf("expected version 1, got %d", decoded.Version)
	}
	if len(decoded.Players) != len(state.PlayerOrder()) {
		t.Fatalf("player count mismatch: got %d want %d", len(decoded.Players), len(state.PlayerOrder()))
	}
	if len(decoded.Balls) != len(state.BallOrder()) {
		t.Fatalf("ball count mismatch: got %d want %d", len(decoded.Balls), len(state.BallOrder()))
	}
	if decoded.PossessionCode != -1 {
		t.Fatalf("version 1 has no possession trailer, got %d", decoded.PossessionCode)
	}
}

func TestEncodeDecodeVersion2CarriesDelayTrailer(t *testing.T) {
	state := newFixtureState()
	state.DelayBin = 3
	state.PossessionCode = 2
	data, err := EncodeState(state, Version2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.DelayBin != 3 {
		t.Fatalf("expected delay bin 3, got %d", decoded.DelayBin)
	}
	if decoded.PossessionCode != 2 {
		t.Fatalf("expected possession code 2, got %d", decoded.PossessionCode)
	}
}

func TestEncodeDecodeVersion3CarriesPerBallPossession(t *testing.T) {
	state := newFixtureState()
	team := 1
	state.Volleyball().PossessionTeam = &team
	data, err := EncodeState(state, Version3)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, b := range decoded.Balls {
		if b.PossessionCode == 2 { // team 1 -> possession code 2
			found = true
		}
	}
	if !found {
		t.Fatal("expected one ball to report possession code 2")
	}
}

func TestDecodeRejectsTruncatedPacket(t *testing.T) {
	if _, err := DecodeState([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding a too-short packet")
	}
}

func TestEncodeFlagsReflectHolderAndKnockout(t *testing.T) {
	state := newFixtureState()
	p := state.Players["p1"]
	p.IsKnockedOut = true
	ball := state.Volleyball()
	holder := "p1"
	ball.HolderID = &holder

	data, err := EncodeState(state, Version3)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	idx := -1
	for i, id := range state.PlayerOrder() {
		if id == "p1" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("p1 missing from player order")
	}
	if !decoded.Players[idx].IsKnockedOut {
		t.Error("expected knockout flag set")
	}
	if !decoded.Players[idx].HasBall {
		t.Error("expected has-ball flag set")
	}
}

func TestDecodeMovementFrameRoundTrip(t *testing.T) {
	frame := EncodeMovementFrame(0.75, -0.25)
	dx, dy, err := DecodeMovementFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := dx - 0.75; diff > 0.01 || diff < -0.01 {
		t.Errorf("dx round trip off: got %v", dx)
	}
	if diff := dy - (-0.25); diff > 0.01 || diff < -0.01 {
		t.Errorf("dy round trip off: got %v", dy)
	}
}

func TestDecodeMovementFrameRejectsWrongLength(t *testing.T) {
	if _, _, err := DecodeMovementFrame([]byte{0, 0, 0}); err == nil {
		t.Fatal("expected error for a 3-byte frame")
	}
}
