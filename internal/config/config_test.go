package config

import "testing"

func TestNormalizedFillsZeroValues(t *testing.T) {
	cfg := Config{}.Normalized()
	if cfg.PitchLength <= 0 || cfg.PitchWidth <= 0 {
		t.Fatal("expected pitch dimensions to be defaulted")
	}
	if cfg.TickHz <= 0 {
		t.Fatal("expected tick rate to be defaulted")
	}
	if cfg.Seed != DefaultSeed {
		t.Fatalf("expected default seed, got %q", cfg.Seed)
	}
}

func TestNormalizedPreservesExplicitValues(t *testing.T) {
	cfg := Config{PitchLength: 100, TickHz: 30, Seed: "custom"}.Normalized()
	if cfg.PitchLength != 100 {
		t.Errorf("expected explicit pitch length preserved, got %v", cfg.PitchLength)
	}
	if cfg.TickHz != 30 {
		t.Errorf("expected explicit tick rate preserved, got %v", cfg.TickHz)
	}
	if cfg.Seed != "custom" {
		t.Errorf("expected explicit seed preserved, got %q", cfg.Seed)
	}
}

func TestDTMatchesTickHz(t *testing.T) {
	cfg := Default()
	if got := cfg.DT(); got != 1.0/float64(cfg.TickHz) {
		t.Fatalf("expected DT to equal 1/TickHz, got %v", got)
	}
}

func TestMaxSpeedPerRole(t *testing.T) {
	cfg := Default()
	if cfg.MaxSpeed(RoleKeeper) != cfg.KeeperSpeed {
		t.Error("expected keeper max speed to match KeeperSpeed")
	}
	if cfg.MaxSpeed(RoleSeeker) != cfg.SeekerSpeed {
		t.Error("expected seeker max speed to match SeekerSpeed")
	}
	if cfg.MaxSpeed(RoleChaser) != cfg.ChaserSpeed {
		t.Error("expected chaser max speed to match ChaserSpeed")
	}
}

func TestThrowSpeedPerBallType(t *testing.T) {
	cfg := Default()
	if cfg.ThrowSpeed(BallDodgeball) != cfg.DodgeballThrowSpeed {
		t.Error("expected dodgeball throw speed to match DodgeballThrowSpeed")
	}
	if cfg.ThrowSpeed(BallVolleyball) != cfg.VolleyballThrowSpeed {
		t.Error("expected volleyball throw speed to match VolleyballThrowSpeed")
	}
}

func TestHeartbeatDefaultsToThreeIntervals(t *testing.T) {
	cfg := Default()
	if cfg.HeartbeatInterval <= 0 {
		t.Fatal("expected heartbeat interval to be defaulted")
	}
	if cfg.DisconnectAfter != 3*cfg.HeartbeatInterval {
		t.Fatalf("expected disconnect-after to be 3x the heartbeat interval, got %v vs %v", cfg.DisconnectAfter, cfg.HeartbeatInterval)
	}
}

func TestParseRoleValidatesInput(t *testing.T) {
	if _, ok := ParseRole("keeper"); !ok {
		t.Error("expected keeper to parse")
	}
	if _, ok := ParseRole("wizard"); ok {
		t.Error("expected an unknown role to be rejected")
	}
}
