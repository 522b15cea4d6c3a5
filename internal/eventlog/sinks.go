package eventlog

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// ConsoleSink writes one line per event, grounded on the teacher's
// sinks.ConsoleSink.
type ConsoleSink struct {
	logger *log.Logger
}

// NewConsoleSink builds a sink writing to w with standard log flags.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags)}
}

func (s *ConsoleSink) Record(evt Event) {
	if s.logger == nil {
		return
	}
	detail := ""
	if evt.Detail != "" {
		detail = fmt.Sprintf(" detail=%q", evt.Detail)
	}
	s.logger.Printf("[%s] room=%s player=%s team=%d%s", evt.Kind, evt.RoomID, evt.PlayerID, evt.Team, detail)
}

// MemorySink retains every event for later inspection, grounded on
// the teacher's sinks.MemorySink. Used by diagnostics and by tests
// that assert a particular event fired.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0)}
}

func (s *MemorySink) Record(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

// Events returns a copy of every event recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
