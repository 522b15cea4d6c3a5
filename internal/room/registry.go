// Package room implements the lobby layer named in spec §4.2: room
// creation, roster management, and the per-room tick loop that drives
// internal/sim once a room starts. Mirrors the teacher's Hub, split
// into a top-level Registry (the lobby) and one Room per match.
package room

import (
	"crypto/rand"
	"fmt"
	"log"
	"sync"

	"quadball/server/internal/apperr"
	"quadball/server/internal/config"
	"quadball/server/internal/eventlog"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Registry owns every room in the process, keyed by room ID, the way
// the teacher's Hub owns every player.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	cfg         config.Config
	events      *eventlog.Publisher
	logger      *log.Logger
	onRoomClose func(*Room)
}

// SetRoomCloseHook registers fn to run whenever any room's tick loop
// exits, after its sessions are closed and before it is removed from
// the registry. cmd/server uses this to append a match-history row
// without internal/room depending on internal/matchlog.
func (reg *Registry) SetRoomCloseHook(fn func(*Room)) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.onRoomClose = fn
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg config.Config, events *eventlog.Publisher, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		cfg:    cfg.Normalized(),
		events: events,
		logger: logger,
	}
}

// CreateRoom allocates a new room with creatorName as its sole roster
// entry and returns it still in the pending (pre-start) phase.
func (reg *Registry) CreateRoom(creatorName string) (*Room, *RosterSlot, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	id, err := reg.newRoomIDLocked()
	if err != nil {
		return nil, nil, err
	}

	r := newRoom(id, reg.cfg, reg.events, reg.logger)
	slot := r.addPlayerLocked(creatorName)
	r.creatorID = slot.PlayerID
	reg.rooms[id] = r

	r.SetCloseHook(func(closed *Room) {
		if reg.onRoomClose != nil {
			reg.onRoomClose(closed)
		}
		reg.Remove(closed.ID())
	})

	reg.events.Publish(eventlog.Event{Kind: eventlog.KindRoomCreated, RoomID: id, PlayerID: slot.PlayerID})
	return r, slot, nil
}

// Get returns the room for id, if it exists.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// List returns a snapshot of every room's lobby summary, in creation
// order is not guaranteed (map iteration), matching the teacher's
// snapshotLocked pattern of copying under the lock then releasing it.
func (reg *Registry) List() []Summary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]Summary, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r.summary())
	}
	return out
}

// Remove deletes a room from the registry, called once its tick loop
// has torn itself down (spec §5 teardown).
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

func (reg *Registry) newRoomIDLocked() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		id, err := randomRoomCode(6)
		if err != nil {
			return "", err
		}
		if _, exists := reg.rooms[id]; !exists {
			return id, nil
		}
	}
	return "", apperr.New(apperr.KindTransientIO, fmt.Errorf("room: exhausted attempts generating a unique room code"))
}

func randomRoomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.New(apperr.KindFatal, fmt.Errorf("room: generating code: %w", err))
	}
	code := make([]byte, n)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}
