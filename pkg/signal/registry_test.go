package signal

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-hq/conclave/pkg/logging"
)

type fakeConn struct {
	mu        sync.Mutex
	envelopes []Envelope
	fail      bool
}

func (c *fakeConn) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection gone")
	}
	c.envelopes = append(c.envelopes, env)
	return nil
}

func (c *fakeConn) received() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.envelopes))
	copy(out, c.envelopes)
	return out
}

func newRegistry() *Registry {
	return NewRegistry(logging.NewNopLogger())
}

func TestJoin_ReturnsExistingParticipants(t *testing.T) {
	r := newRegistry()
	a, b := &fakeConn{}, &fakeConn{}

	others := r.Join("room-1", "p1", "alice", a)
	assert.Empty(t, others)

	others = r.Join("room-1", "p2", "bob", b)
	assert.Equal(t, []string{"p1"}, others)
}

func TestJoin_NotifiesOthers(t *testing.T) {
	r := newRegistry()
	a, b := &fakeConn{}, &fakeConn{}

	r.Join("room-1", "p1", "alice", a)
	r.Join("room-1", "p2", "bob", b)

	got := a.received()
	require.Len(t, got, 1)
	assert.Equal(t, TypeUserConnected, got[0].Type)
	assert.Equal(t, "p2", got[0].From)
	assert.Equal(t, "bob", got[0].UserID)
	assert.Empty(t, b.received(), "the newcomer is not notified about itself")
}

func TestLeave_NotifiesAndEvicts(t *testing.T) {
	r := newRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Join("room-1", "p1", "alice", a)
	r.Join("room-1", "p2", "bob", b)

	evicted := r.Leave("room-1", "p2")
	assert.False(t, evicted)

	got := a.received()
	require.Len(t, got, 2)
	assert.Equal(t, TypeUserDisconnected, got[1].Type)
	assert.Equal(t, "p2", got[1].From)

	evicted = r.Leave("room-1", "p1")
	assert.True(t, evicted, "last leave evicts the room")
	assert.Equal(t, 0, r.Rooms())
}

func TestLeave_UnknownIsNoop(t *testing.T) {
	r := newRegistry()
	assert.False(t, r.Leave("ghost-room", "p1"))

	r.Join("room-1", "p1", "alice", &fakeConn{})
	assert.False(t, r.Leave("room-1", "ghost"))
	assert.Equal(t, 1, r.Rooms())
}

func TestRelay(t *testing.T) {
	r := newRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Join("room-1", "p1", "alice", a)
	r.Join("room-1", "p2", "bob", b)

	payload, _ := json.Marshal(map[string]string{"sdp": "v=0"})
	ok := r.Relay("room-1", Envelope{Type: TypeOffer, Target: "p2", From: "p1", Payload: payload})
	assert.True(t, ok)

	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, TypeOffer, got[0].Type)
	assert.Equal(t, "p1", got[0].From)
}

func TestRelay_MissingTargetIsBestEffort(t *testing.T) {
	r := newRegistry()
	r.Join("room-1", "p1", "alice", &fakeConn{})

	assert.False(t, r.Relay("room-1", Envelope{Type: TypeOffer, Target: "ghost"}))
	assert.False(t, r.Relay("ghost-room", Envelope{Type: TypeOffer, Target: "p1"}))
}

func TestRelay_FailedSendDoesNotPanic(t *testing.T) {
	r := newRegistry()
	r.Join("room-1", "p1", "alice", &fakeConn{fail: true})

	ok := r.Relay("room-1", Envelope{Type: TypeAnswer, Target: "p1"})
	assert.True(t, ok, "delivery failure is logged, not surfaced")
}

func TestRoomsAreIndependent(t *testing.T) {
	r := newRegistry()
	r.Join("room-1", "p1", "alice", &fakeConn{})
	r.Join("room-2", "p2", "bob", &fakeConn{})

	assert.Equal(t, 2, r.Rooms())
	assert.Equal(t, []string{"p1"}, r.Participants("room-1"))

	r.Leave("room-1", "p1")
	assert.Equal(t, 1, r.Rooms())
	assert.Equal(t, []string{"p2"}, r.Participants("room-2"))
}
