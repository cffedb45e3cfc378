package daemon

import (
	"log/slog"

	"github.com/abusi/clhorde/internal/protocol"
)

// sessionQueueCapacity bounds each client's event queue.
const sessionQueueCapacity = 1024

// ClientSession is one attached client: its event queue (drained by the
// IPC server's write loop) and its subscription flag. New sessions start
// unsubscribed.
type ClientSession struct {
	ID         uint64
	Events     chan protocol.DaemonEvent
	Done       chan struct{}
	Subscribed bool
}

// SessionManager tracks connected clients for the orchestrator. Sends
// never block: a full queue drops the event and keeps the session, and a
// closed (disconnected) session is removed on the spot. Slow clients must
// never stall the orchestrator — a client that wants a durable view asks
// for a state snapshot.
type SessionManager struct {
	sessions []*ClientSession
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Add registers a client session.
func (m *SessionManager) Add(id uint64, events chan protocol.DaemonEvent, done chan struct{}) {
	m.sessions = append(m.sessions, &ClientSession{ID: id, Events: events, Done: done})
}

// Remove deregisters a client session.
func (m *SessionManager) Remove(id uint64) {
	for i, s := range m.sessions {
		if s.ID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return
		}
	}
}

// SetSubscribed toggles a session's subscription flag.
func (m *SessionManager) SetSubscribed(id uint64, subscribed bool) {
	for _, s := range m.sessions {
		if s.ID == id {
			s.Subscribed = subscribed
			return
		}
	}
}

// Broadcast delivers an event to every subscribed session.
func (m *SessionManager) Broadcast(ev protocol.DaemonEvent) {
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if !s.Subscribed {
			kept = append(kept, s)
			continue
		}
		if m.trySend(s, ev) {
			kept = append(kept, s)
		}
	}
	// Zero dropped tails so removed sessions can be collected.
	for i := len(kept); i < len(m.sessions); i++ {
		m.sessions[i] = nil
	}
	m.sessions = kept
}

// SendTo delivers an event to one session. Returns true only if the event
// was enqueued; a full queue drops the event but keeps the session.
func (m *SessionManager) SendTo(id uint64, ev protocol.DaemonEvent) bool {
	for i, s := range m.sessions {
		if s.ID != id {
			continue
		}
		select {
		case <-s.Done:
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return false
		default:
		}
		select {
		case s.Events <- ev:
			return true
		default:
			slog.Warn("event queue full, dropping event", "session_id", id, "event", ev.Type)
			return false
		}
	}
	return false
}

// Count returns the number of registered sessions.
func (m *SessionManager) Count() int {
	return len(m.sessions)
}

// trySend enqueues without blocking; false means the session is gone.
func (m *SessionManager) trySend(s *ClientSession, ev protocol.DaemonEvent) bool {
	select {
	case <-s.Done:
		return false
	default:
	}
	select {
	case s.Events <- ev:
	default:
		slog.Warn("event queue full, dropping event", "session_id", s.ID, "event", ev.Type)
	}
	return true
}
