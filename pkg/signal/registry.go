package signal

import (
	"sync"

	"github.com/conclave-hq/conclave/pkg/logging"
)

type participant struct {
	userID string
	conn   Conn
}

type room struct {
	participants map[string]*participant
}

// Registry tracks who is in which room. Rooms exist only while they have
// participants; the last leave evicts the room.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	logger logging.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		logger: logger.With(logging.F("component", "signal_registry")),
	}
}

// Join adds a participant to a room, notifies the others, and returns the
// participant ids already present.
func (r *Registry) Join(roomID, participantID, userID string, conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		rm = &room{participants: make(map[string]*participant)}
		r.rooms[roomID] = rm
	}

	others := make([]string, 0, len(rm.participants))
	for id, p := range rm.participants {
		others = append(others, id)
		r.send(roomID, id, p, Envelope{Type: TypeUserConnected, From: participantID, UserID: userID})
	}
	rm.participants[participantID] = &participant{userID: userID, conn: conn}

	r.logger.Info("Participant joined",
		logging.F("room_id", roomID),
		logging.F("participant_id", participantID),
		logging.F("participants", len(rm.participants)))
	return others
}

// Leave removes a participant, notifies the others, and reports whether the
// room became empty (and was evicted).
func (r *Registry) Leave(roomID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return false
	}
	if _, ok := rm.participants[participantID]; !ok {
		return false
	}
	delete(rm.participants, participantID)

	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		r.logger.Info("Room evicted", logging.F("room_id", roomID))
		return true
	}

	for id, p := range rm.participants {
		r.send(roomID, id, p, Envelope{Type: TypeUserDisconnected, From: participantID})
	}
	return false
}

// Relay forwards an envelope to one participant. It reports false when the
// room or target is gone; the caller treats that as best-effort loss.
func (r *Registry) Relay(roomID string, env Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return false
	}
	target, ok := rm.participants[env.Target]
	if !ok {
		return false
	}
	r.send(roomID, env.Target, target, env)
	return true
}

// Participants returns the participant ids currently in a room.
func (r *Registry) Participants(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return nil
	}
	out := make([]string, 0, len(rm.participants))
	for id := range rm.participants {
		out = append(out, id)
	}
	return out
}

// Rooms returns the number of active rooms.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// TotalParticipants returns the participant count across all rooms.
func (r *Registry) TotalParticipants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rm := range r.rooms {
		n += len(rm.participants)
	}
	return n
}

func (r *Registry) send(roomID, participantID string, p *participant, env Envelope) {
	if err := p.conn.Send(env); err != nil {
		r.logger.Warn("Envelope delivery failed",
			logging.Err(err),
			logging.F("room_id", roomID),
			logging.F("participant_id", participantID),
			logging.F("type", env.Type))
	}
}
