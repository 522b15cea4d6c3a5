// Package eventlog is the structured event bus used for gameplay
// telemetry (room lifecycle, joins, goals, knockouts, turnovers, inbounds),
// grounded on the teacher's logging package. Process-level messages
// (listener errors, startup/shutdown) still go through log.Printf as
// the teacher does; this bus is only for domain events a room wants
// to both log and make available to dashboards/tests.
package eventlog

import "time"

// Kind names a notable occurrence worth recording out of band.
type Kind string

const (
	KindRoomCreated   Kind = "room_created"
	KindPlayerJoined  Kind = "player_joined"
	KindPlayerLeft    Kind = "player_left"
	KindGameStarted   Kind = "game_started"
	KindGoal          Kind = "goal"
	KindKnockout      Kind = "knockout"
	KindTurnover      Kind = "turnover"
	KindInbound       Kind = "inbound_triggered"
	KindProtocolError Kind = "protocol_error"
	KindRoomClosed    Kind = "room_closed"
)

// Event is one entry on the bus. Fields are deliberately flat rather
// than a generic payload map, since every kind emitted by this repo
// is known ahead of time.
type Event struct {
	Kind     Kind      `json:"kind"`
	Time     time.Time `json:"time"`
	RoomID   string    `json:"roomId,omitempty"`
	PlayerID string    `json:"playerId,omitempty"`
	Team     int       `json:"team,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Sink receives every published event. Implementations must not
// block the caller for long; Publisher fans out synchronously, same
// as the teacher's router, so a slow sink throttles the whole room.
type Sink interface {
	Record(Event)
}

// Publisher fans a single event out to every registered sink. It
// plays the role of the teacher's Router, simplified: this domain
// has no per-category subscriber filtering, so one broadcast list
// suffices in place of the teacher's per-EventType registration.
type Publisher struct {
	sinks []Sink
}

// NewPublisher constructs a Publisher that forwards to every sink
// given, in order.
func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

// Publish stamps the event's time if unset and forwards it to every
// sink.
func (p *Publisher) Publish(evt Event) {
	if p == nil {
		return
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	for _, sink := range p.sinks {
		sink.Record(evt)
	}
}
