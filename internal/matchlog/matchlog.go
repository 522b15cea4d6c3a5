// Package matchlog is an append-only record of completed matches,
// grounded on bormisov1-spaceship-online-game/server/database.go's
// sqlite usage. This is explicitly NOT game-state persistence: a
// restarted process loses every in-flight room (spec Non-goals); this
// store only answers "what happened," after the fact, for the
// /matches endpoint.
package matchlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection backing the match-history log.
type Store struct {
	conn *sql.DB
}

// Open creates (or reuses) the sqlite file at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("matchlog: open: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("matchlog: enabling WAL: %w", err)
	}

	store := &Store{conn: conn}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		score_team0 INTEGER NOT NULL DEFAULT 0,
		score_team1 INTEGER NOT NULL DEFAULT 0,
		ended_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		name TEXT NOT NULL,
		team INTEGER NOT NULL,
		role TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_match ON match_players(match_id);
	`
	_, err := s.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("matchlog: migrate: %w", err)
	}
	return nil
}

// PlayerRecord is one roster entry to attach to a completed match.
type PlayerRecord struct {
	PlayerID string
	Name     string
	Team     int
	Role     string
}

// RecordMatch inserts a completed match and its roster in one
// transaction, returning the generated match ID.
func (s *Store) RecordMatch(roomID string, duration time.Duration, score [2]int, players []PlayerRecord) (int64, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("matchlog: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO matches (room_id, duration_seconds, score_team0, score_team1) VALUES (?, ?, ?, ?)",
		roomID, duration.Seconds(), score[0], score[1],
	)
	if err != nil {
		return 0, fmt.Errorf("matchlog: insert match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("matchlog: match id: %w", err)
	}

	for _, p := range players {
		if _, err := tx.Exec(
			"INSERT INTO match_players (match_id, player_id, name, team, role) VALUES (?, ?, ?, ?, ?)",
			matchID, p.PlayerID, p.Name, p.Team, p.Role,
		); err != nil {
			return 0, fmt.Errorf("matchlog: insert roster: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("matchlog: commit: %w", err)
	}
	return matchID, nil
}

// MatchSummary is one row of /matches history output.
type MatchSummary struct {
	ID              int64     `json:"id"`
	RoomID          string    `json:"room_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	ScoreTeam0      int       `json:"score_team0"`
	ScoreTeam1      int       `json:"score_team1"`
	EndedAt         time.Time `json:"ended_at"`
}

// Recent returns the most recently recorded matches, newest first.
func (s *Store) Recent(limit int) ([]MatchSummary, error) {
	rows, err := s.conn.Query(
		"SELECT id, room_id, duration_seconds, score_team0, score_team1, ended_at FROM matches ORDER BY ended_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("matchlog: query recent: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var m MatchSummary
		if err := rows.Scan(&m.ID, &m.RoomID, &m.DurationSeconds, &m.ScoreTeam0, &m.ScoreTeam1, &m.EndedAt); err != nil {
			return nil, fmt.Errorf("matchlog: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
