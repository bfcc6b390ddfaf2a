package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/events"
)

type fakeConn struct {
	id     string
	userID string
	fail   bool

	mu       sync.Mutex
	received []events.Envelope
}

func newFakeConn(id, userID string) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(envelope events.Envelope) error {
	if c.fail {
		return errors.New("closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, envelope)
	return nil
}

func (c *fakeConn) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.EventType, 0, len(c.received))
	for _, e := range c.received {
		out = append(out, e.Type)
	}
	return out
}

func envelope(t events.EventType) events.Envelope {
	return events.Envelope{Type: t, Timestamp: time.Now()}
}

func TestPublishToRoomReachesOnlyMembers(t *testing.T) {
	hub := NewHub(nil)
	joined := newFakeConn("c1", "u1")
	left := newFakeConn("c2", "u2")
	never := newFakeConn("c3", "u3")
	for _, c := range []*fakeConn{joined, left, never} {
		hub.Register(c)
	}
	require.True(t, hub.Join(joined, "X"))
	require.True(t, hub.Join(left, "X"))
	hub.Leave(left, "X")

	n := hub.Publish(envelope(events.EventStatusUpdate), events.Room("X"))

	assert.Equal(t, 1, n)
	assert.Equal(t, []events.EventType{events.EventStatusUpdate}, joined.types())
	assert.Empty(t, left.types())
	assert.Empty(t, never.types())
	assert.True(t, hub.InRoom(joined, "X"))
	assert.False(t, hub.InRoom(left, "X"))
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn("c1", "u1")
	hub.Register(conn)
	hub.Join(conn, "X")
	hub.Join(conn, "X")

	assert.Equal(t, 1, hub.Publish(envelope(events.EventStatusUpdate), events.Room("X")))
	assert.Equal(t, []string{"c1"}, hub.Members("X"))
}

func TestJoinRequiresRegistration(t *testing.T) {
	hub := NewHub(nil)
	assert.False(t, hub.Join(newFakeConn("ghost", "u1"), "X"))
	assert.Empty(t, hub.Members("X"))
}

func TestPublishToUserAndBroadcast(t *testing.T) {
	hub := NewHub(nil)
	phone := newFakeConn("c1", "u1")
	laptop := newFakeConn("c2", "u1")
	other := newFakeConn("c3", "u2")
	for _, c := range []*fakeConn{phone, laptop, other} {
		hub.Register(c)
	}

	assert.Equal(t, 2, hub.Publish(envelope(events.EventStaffAssignment), events.User("u1")))
	assert.Equal(t, 3, hub.Publish(envelope(events.EventEscalation), events.Broadcast()))
	assert.Equal(t, 0, hub.Publish(envelope(events.EventEscalation), events.User("nobody")))
	assert.Len(t, other.types(), 1)
}

func TestUnregisterRemovesAllMembership(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn("c1", "u1")
	hub.Register(conn)
	hub.Join(conn, "X")
	hub.Join(conn, "Y")

	hub.Unregister(conn)

	assert.Equal(t, Stats{}, hub.Stats())
	assert.Equal(t, 0, hub.Publish(envelope(events.EventStatusUpdate), events.Room("X")))
	assert.Equal(t, 0, hub.Publish(envelope(events.EventStatusUpdate), events.User("u1")))
	assert.Empty(t, conn.types())
}

func TestTypingExcludesActorConnections(t *testing.T) {
	hub := NewHub(nil)
	actorPhone := newFakeConn("c1", "u1")
	actorLaptop := newFakeConn("c2", "u1")
	watcher := newFakeConn("c3", "s1")
	for _, c := range []*fakeConn{actorPhone, actorLaptop, watcher} {
		hub.Register(c)
		hub.Join(c, "X")
	}

	assert.Equal(t, 1, hub.TypingStart("X", "u1"))
	assert.Equal(t, 1, hub.TypingStop("X", "u1"))

	assert.Equal(t, []events.EventType{events.EventUserTyping, events.EventUserStoppedTyping}, watcher.types())
	assert.Empty(t, actorPhone.types())
	assert.Empty(t, actorLaptop.types())
}

func TestFailedSendIsNotCounted(t *testing.T) {
	hub := NewHub(nil)
	broken := newFakeConn("c1", "u1")
	broken.fail = true
	ok := newFakeConn("c2", "u2")
	hub.Register(broken)
	hub.Register(ok)

	assert.Equal(t, 1, hub.Publish(envelope(events.EventStatusUpdate), events.Broadcast()))
}

func TestConcurrentMembershipChanges(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn(fmt.Sprintf("c%d", i), "u")
			hub.Register(conn)
			hub.Join(conn, "X")
			hub.Publish(envelope(events.EventStatusUpdate), events.Room("X"))
			hub.Leave(conn, "X")
			hub.Unregister(conn)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, Stats{}, hub.Stats())
}

func TestLocalBusDelivers(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn("c1", "u1")
	hub.Register(conn)

	require.NoError(t, NewLocalBus(hub).Deliver(context.Background(), Delivery{
		Envelope: envelope(events.EventDeadlineReminder),
		Target:   events.User("u1"),
	}))
	assert.Equal(t, []events.EventType{events.EventDeadlineReminder}, conn.types())
}

func TestRedisBusRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	hub := NewHub(nil)
	conn := newFakeConn("c1", "u1")
	hub.Register(conn)
	hub.Join(conn, "X")

	bus := NewRedisBus(client, "complaints:test", hub, nil)
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))
	defer bus.Close()

	require.NoError(t, bus.Deliver(ctx, Delivery{Envelope: envelope(events.EventEscalation), Target: events.Room("X")}))

	assert.Eventually(t, func() bool {
		return len(conn.types()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.EventEscalation, conn.types()[0])
}
