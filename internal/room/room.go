package room

import (
	"fmt"
	"log"
	"sync"
	"time"

	"quadball/server/internal/apperr"
	"quadball/server/internal/config"
	"quadball/server/internal/eventlog"
	"quadball/server/internal/geometry"
	"quadball/server/internal/protocol"
	"quadball/server/internal/sim"
)

// Phase names the room's lifecycle stage, per spec §4.2.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseActive  Phase = "active"
	PhaseClosed  Phase = "closed"
)

// RosterSlot is one seat in a room's pending roster, before the game
// starts and the seat becomes a sim.Player.
type RosterSlot struct {
	PlayerID string
	Name     string
	Team     int
	Role     config.Role
}

// RosterPlayer is the read-only view handed back to callers (wire
// serialization lives in internal/protocol, not here).
type RosterPlayer struct {
	PlayerID string
	Name     string
	Team     int
	Role     config.Role
}

// Summary is the lobby-list view of a room.
type Summary struct {
	RoomID      string
	CreatorName string
	PlayerCount int
	Phase       Phase
}

// GameSession is the minimal surface a transport-layer connection
// must expose for a Room to broadcast to it. Keeping this as an
// interface (rather than importing the websocket package directly)
// is what lets internal/transport/ws depend on internal/room without
// a cycle, the same separation the teacher draws between its Hub and
// its ws.Handler.
type GameSession interface {
	WriteBinary(data []byte) error
	Close()
}

// Room owns one match's roster, live simulation state, and tick loop.
// Mirrors the shape of the teacher's Hub, scoped to a single match
// instead of the whole process.
type Room struct {
	id     string
	cfg    config.Config
	events *eventlog.Publisher
	logger *log.Logger

	mu          sync.Mutex
	roster      map[string]*RosterSlot
	rosterOrder []string
	creatorID   string
	phase       Phase

	state             *sim.GameState
	startedAt         time.Time
	disconnectedSince time.Time

	sessions map[string]GameSession

	pendingMovement map[string]geometry.Vector2
	pendingThrows   []string

	stop chan struct{}
	done chan struct{}

	onClose func(*Room)
}

// SetCloseHook registers a callback invoked once, after the tick loop
// has exited and every session has been closed. Used by cmd/server to
// append a match-history row without the room package depending on
// internal/matchlog.
func (r *Room) SetCloseHook(fn func(*Room)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = fn
}

// StartedAt returns the time the game began, the zero value if it
// has not started yet.
func (r *Room) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

func newRoom(id string, cfg config.Config, events *eventlog.Publisher, logger *log.Logger) *Room {
	return &Room{
		id:              id,
		cfg:             cfg,
		events:          events,
		logger:          logger,
		roster:          make(map[string]*RosterSlot),
		phase:           PhasePending,
		sessions:        make(map[string]GameSession),
		pendingMovement: make(map[string]geometry.Vector2),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// ID returns the room's 6-character code.
func (r *Room) ID() string { return r.id }

func (r *Room) addPlayerLocked(name string) *RosterSlot {
	slot := &RosterSlot{
		PlayerID: sim.NewEntityID("player"),
		Name:     name,
		Team:     len(r.rosterOrder) % 2,
		Role:     config.RoleChaser,
	}
	r.roster[slot.PlayerID] = slot
	r.rosterOrder = append(r.rosterOrder, slot.PlayerID)
	return slot
}

// Join adds name to the roster, rejecting joins after the game has
// started (spec §4.2: roster is fixed once play begins).
func (r *Room) Join(name string) (*RosterSlot, []RosterPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePending {
		return nil, nil, apperr.New(apperr.KindProtocol, fmt.Errorf("room: %s has already started", r.id))
	}

	slot := r.addPlayerLocked(name)
	r.events.Publish(eventlog.Event{Kind: eventlog.KindPlayerJoined, RoomID: r.id, PlayerID: slot.PlayerID})
	return slot, r.rosterLocked(), nil
}

// UpdatePlayer changes a pending player's team/role assignment, per
// spec §4.2's update_player operation.
func (r *Room) UpdatePlayer(playerID string, team int, role config.Role) ([]RosterPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePending {
		return nil, apperr.New(apperr.KindProtocol, fmt.Errorf("room: %s has already started", r.id))
	}
	slot, ok := r.roster[playerID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, fmt.Errorf("room: unknown player %s", playerID))
	}
	if team != 0 && team != 1 {
		return nil, apperr.New(apperr.KindProtocol, fmt.Errorf("room: invalid team %d", team))
	}
	slot.Team = team
	slot.Role = role
	return r.rosterLocked(), nil
}

func (r *Room) rosterLocked() []RosterPlayer {
	out := make([]RosterPlayer, 0, len(r.rosterOrder))
	for _, id := range r.rosterOrder {
		s := r.roster[id]
		out = append(out, RosterPlayer{PlayerID: s.PlayerID, Name: s.Name, Team: s.Team, Role: s.Role})
	}
	return out
}

// Roster returns the current (pending or frozen-at-start) roster.
func (r *Room) Roster() []RosterPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// CreatorID returns the player ID that created the room.
func (r *Room) CreatorID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creatorID
}

// Start validates requesterID is the creator, builds the initial
// sim.GameState from the frozen roster, and launches the tick loop.
// Per spec §4.2 Non-goals, there is no minimum-roster-size check here
// beyond "at least one player" — team balance is the creator's call.
func (r *Room) Start(requesterID string) (*sim.GameState, error) {
	r.mu.Lock()
	if r.phase != PhasePending {
		r.mu.Unlock()
		return nil, apperr.New(apperr.KindProtocol, fmt.Errorf("room: %s has already started", r.id))
	}
	if requesterID != r.creatorID {
		r.mu.Unlock()
		return nil, apperr.New(apperr.KindAuthorization, fmt.Errorf("room: only the creator may start the game"))
	}

	entries := make([]sim.RosterEntry, 0, len(r.rosterOrder))
	for _, id := range r.rosterOrder {
		s := r.roster[id]
		entries = append(entries, sim.RosterEntry{PlayerID: s.PlayerID, Name: s.Name, Team: s.Team, Role: s.Role})
	}

	r.state = sim.NewRoom(r.cfg, entries)
	r.phase = PhaseActive
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.events.Publish(eventlog.Event{Kind: eventlog.KindGameStarted, RoomID: r.id, PlayerID: requesterID})
	go r.runLoop()
	return r.state, nil
}

// RegisterSession attaches a transport-layer connection for playerID,
// replacing any prior one and clearing the disconnected-pause state
// set by a previous drop (reconnect case, spec §5).
func (r *Room) RegisterSession(playerID string, sess GameSession) {
	r.mu.Lock()
	old, had := r.sessions[playerID]
	r.sessions[playerID] = sess
	if r.state != nil {
		if p, ok := r.state.Players[playerID]; ok {
			p.Disconnected = false
		}
	}
	r.mu.Unlock()
	if had {
		old.Close()
	}
}

// MarkDisconnected pauses playerID in place, per spec §5: an
// individual socket drop does not end the room, but the player stops
// participating in the simulation until they reconnect.
func (r *Room) MarkDisconnected(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return
	}
	if p, ok := r.state.Players[playerID]; ok {
		p.Disconnected = true
	}
}

// UnregisterSession removes playerID's session if sess is still the
// one on file (a newer reconnect may have already replaced it).
func (r *Room) UnregisterSession(playerID string, sess GameSession) {
	r.mu.Lock()
	if current, ok := r.sessions[playerID]; ok && current == sess {
		delete(r.sessions, playerID)
	}
	r.mu.Unlock()
}

// State returns the live GameState pointer. Callers must not mutate
// it outside the tick loop; it's exposed for the initial_state
// handshake snapshot only.
func (r *Room) State() *sim.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config returns the room's normalized config.
func (r *Room) Config() config.Config { return r.cfg }

// QueueMovement overwrites the pending movement intent for playerID.
// Per spec §5, movement is coalesced: only the latest vector before
// each tick survives.
func (r *Room) QueueMovement(playerID string, dx, dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingMovement[playerID] = geometry.Vector2{X: dx, Y: dy}
}

// QueueThrow appends a throw intent. Per spec §5, throws are not
// coalesced: every request between ticks is honored in arrival order.
func (r *Room) QueueThrow(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingThrows = append(r.pendingThrows, playerID)
}

func (r *Room) drainInputsLocked() sim.Inputs {
	inputs := sim.Inputs{Movement: r.pendingMovement, Throws: r.pendingThrows}
	r.pendingMovement = make(map[string]geometry.Vector2)
	r.pendingThrows = nil
	return inputs
}

func (r *Room) summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	creatorName := ""
	if s, ok := r.roster[r.creatorID]; ok {
		creatorName = s.Name
	}
	return Summary{RoomID: r.id, CreatorName: creatorName, PlayerCount: len(r.rosterOrder), Phase: r.phase}
}

// Stop requests the tick loop to exit and blocks until it has,
// closing every live session on the way out (spec §5 teardown).
func (r *Room) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

// runLoop is the fixed-rate tick loop, grounded on the teacher's
// Hub.RunSimulation: a ticker at the configured rate, each tick
// draining queued inputs, stepping the simulation, and broadcasting
// the result to every live session.
func (r *Room) runLoop() {
	defer close(r.done)

	dt := r.cfg.DT()
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.closeAllSessions()
			return
		case <-ticker.C:
			_, _, idle := r.tick(dt)
			if idle {
				r.closeAllSessions()
				return
			}
		}
	}
}

// idleRoomGrace is how long a room with every player disconnected
// keeps ticking before it self-tears-down. The base spec leaves the
// teardown trigger open (§5 only defines the effect, not the cause);
// this mirrors the teacher's heartbeat-timeout reaping in hub.go,
// scoped to "everyone," rather than leaving abandoned rooms running
// forever.
const idleRoomGrace = 2 * time.Minute

func (r *Room) tick(dt float64) (events []sim.Event, state *sim.GameState, idle bool) {
	r.mu.Lock()
	inputs := r.drainInputsLocked()
	events = sim.Step(r.state, r.cfg, dt, inputs)
	state = r.state

	if r.allPlayersDisconnectedLocked() {
		if r.disconnectedSince.IsZero() {
			r.disconnectedSince = time.Now()
		} else if time.Since(r.disconnectedSince) > idleRoomGrace {
			idle = true
		}
	} else {
		r.disconnectedSince = time.Time{}
	}
	r.mu.Unlock()

	for _, evt := range events {
		r.events.Publish(eventlog.Event{Kind: eventKind(evt.Kind), RoomID: r.id, PlayerID: evt.PlayerID, Team: evt.Team})
	}

	r.broadcast(state)
	return events, state, idle
}

func (r *Room) allPlayersDisconnectedLocked() bool {
	if r.state == nil || len(r.state.PlayerOrder()) == 0 {
		return false
	}
	for _, id := range r.state.PlayerOrder() {
		if !r.state.Players[id].Disconnected {
			return false
		}
	}
	return true
}

func eventKind(k sim.EventKind) eventlog.Kind {
	switch k {
	case sim.EventGoal:
		return eventlog.KindGoal
	case sim.EventKnockout:
		return eventlog.KindKnockout
	case sim.EventTurnover:
		return eventlog.KindTurnover
	case sim.EventInboundTriggered:
		return eventlog.KindInbound
	default:
		return eventlog.Kind(k)
	}
}

func (r *Room) broadcast(state *sim.GameState) {
	packet, err := protocol.EncodeState(state, protocol.Version3)
	if err != nil {
		r.logger.Printf("room %s: encode state: %v", r.id, err)
		return
	}

	r.mu.Lock()
	sessions := make(map[string]GameSession, len(r.sessions))
	for id, sess := range r.sessions {
		sessions[id] = sess
	}
	r.mu.Unlock()

	for id, sess := range sessions {
		if err := sess.WriteBinary(packet); err != nil {
			r.logger.Printf("room %s: write to %s: %v", r.id, id, err)
			r.UnregisterSession(id, sess)
			sess.Close()
		}
	}
}

func (r *Room) closeAllSessions() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]GameSession)
	r.phase = PhaseClosed
	hook := r.onClose
	r.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
	r.events.Publish(eventlog.Event{Kind: eventlog.KindRoomClosed, RoomID: r.id})
	if hook != nil {
		hook(r)
	}
}
