package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/observability"
)

// RoomClosedFunc runs after the last participant leaves a room that produced
// a recording. ref is the recorder's artifact reference.
type RoomClosedFunc func(ctx context.Context, roomID, ref string)

// Hub upgrades websocket connections and bridges them into the registry.
// Signaling envelopes arrive as JSON text frames; audio chunks arrive as
// binary frames and go straight to the recorder.
type Hub struct {
	registry *Registry
	recorder Recorder
	logger   logging.Logger
	upgrader websocket.Upgrader
	metrics  *observability.Metrics

	// OnRoomClosed, when set, is invoked once per room eviction with the
	// accumulated recording, typically to attach it to the meeting.
	OnRoomClosed RoomClosedFunc
}

// NewHub creates a websocket hub over the given registry and recorder.
func NewHub(registry *Registry, recorder Recorder, logger logging.Logger) *Hub {
	return &Hub{
		registry: registry,
		recorder: recorder,
		logger:   logger.With(logging.F("component", "signal_hub")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetMetrics attaches gauge and counter updates for joins, leaves, and audio
// chunk appends.
func (h *Hub) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

// HandleWS serves one participant's signaling session. Expects ?roomId= and
// ?userId= query parameters.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	if roomID == "" {
		http.Error(w, "roomId required", http.StatusBadRequest)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", logging.Err(err), logging.F("room_id", roomID))
		return
	}

	participantID := uuid.NewString()
	conn := &wsConn{conn: raw}

	others := h.registry.Join(roomID, participantID, userID, conn)
	h.syncGauges()
	payload, _ := json.Marshal(others)
	if err := conn.Send(Envelope{Type: TypeAllUsers, Payload: payload}); err != nil {
		h.logger.Warn("Roster delivery failed", logging.Err(err), logging.F("room_id", roomID))
	}

	go h.readLoop(r.Context(), roomID, participantID, raw)
}

func (h *Hub) readLoop(ctx context.Context, roomID, participantID string, raw *websocket.Conn) {
	defer func() {
		_ = raw.Close()
		evicted := h.registry.Leave(roomID, participantID)
		h.syncGauges()
		if evicted {
			h.roomClosed(ctx, roomID)
		}
	}()

	for {
		msgType, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := h.recorder.Append(roomID, data); err != nil {
				h.logger.Error("Audio chunk write failed", logging.Err(err), logging.F("room_id", roomID))
			} else if h.metrics != nil {
				h.metrics.AudioBytesTotal.Add(float64(len(data)))
			}

		case websocket.TextMessage:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				h.logger.Warn("Dropping unparseable envelope", logging.Err(err), logging.F("room_id", roomID))
				continue
			}
			h.handleEnvelope(roomID, participantID, env)
		}
	}
}

func (h *Hub) handleEnvelope(roomID, participantID string, env Envelope) {
	switch env.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		if env.Target == "" {
			return
		}
		env.From = participantID
		if !h.registry.Relay(roomID, env) {
			h.logger.Warn("Relay target gone",
				logging.F("room_id", roomID),
				logging.F("target", env.Target),
				logging.F("type", env.Type))
		}
	default:
		h.logger.Warn("Dropping unknown envelope type",
			logging.F("room_id", roomID),
			logging.F("type", env.Type))
	}
}

func (h *Hub) syncGauges() {
	if h.metrics == nil {
		return
	}
	h.metrics.ActiveRooms.Set(float64(h.registry.Rooms()))
	h.metrics.ActiveParticipants.Set(float64(h.registry.TotalParticipants()))
}

func (h *Hub) roomClosed(ctx context.Context, roomID string) {
	if h.OnRoomClosed == nil {
		return
	}
	ref := h.recorder.Ref(roomID)
	if ref == "" {
		return
	}
	// The request context died with the socket; room teardown runs on its own.
	h.OnRoomClosed(context.WithoutCancel(ctx), roomID, ref)
}
