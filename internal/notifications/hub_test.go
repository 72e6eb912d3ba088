package notifications

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"askbox/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_BroadcastReachesOnlyWatchers(t *testing.T) {
	hub := NewHub()

	alice, err := hub.Register("p-alice", 1, nil)
	require.NoError(t, err)
	bob, err := hub.Register("p-bob", 2, nil)
	require.NoError(t, err)

	hub.Broadcast("p-alice", []byte(`{"type":"post.liked"}`))

	select {
	case msg := <-alice.Send:
		assert.JSONEq(t, `{"type":"post.liked"}`, string(msg))
	default:
		t.Fatal("alice got nothing")
	}
	assert.Empty(t, bob.Send)
	assert.Equal(t, 1, hub.Watchers("p-alice"))
}

func TestHub_PerProfileLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerProfile; i++ {
		_, err := hub.Register("p1", 1, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("p1", 1, nil)
	assert.ErrorIs(t, err, ErrProfileFull)

	_, err = hub.Register("p2", 1, nil)
	assert.NoError(t, err)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("p1", 1, nil)
	require.NoError(t, err)

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.Watchers("p1"))
	_, open := <-c.Send
	assert.False(t, open)

	// Sending to a removed client must not panic.
	c.TrySend([]byte("late"))
}

func TestHub_FullBufferQueuesDropNotice(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("p1", 1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_DisconnectUser(t *testing.T) {
	hub := NewHub()
	_, err := hub.Register("p1", 1, nil)
	require.NoError(t, err)
	keep, err := hub.Register("p1", 2, nil)
	require.NoError(t, err)

	hub.DisconnectUser("p1", 1)

	assert.Equal(t, 1, hub.Watchers("p1"))
	hub.Broadcast("p1", []byte("hi"))
	assert.Len(t, keep.Send, 1)
}

func TestHub_CloseDropsProfileClients(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register("p1", 1, nil)
	require.NoError(t, err)
	_, err = hub.Register("p1", 2, nil)
	require.NoError(t, err)
	_, err = hub.Register("p2", 1, nil)
	require.NoError(t, err)

	hub.Close("p1")

	assert.Equal(t, 0, hub.Watchers("p1"))
	assert.Equal(t, 1, hub.Watchers("p2"))
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("p1", 1, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	_, err = hub.Register("p1", 1, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	// A late unregister from the read pump is a no-op.
	hub.Unregister(c)
}

func TestHub_StartWiringForwardsRedisEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub()
	c, err := hub.Register("p-target", 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := events.NewRedisPublisher(rdb)
	require.NoError(t, hub.StartWiring(ctx, pub))

	require.NoError(t, pub.Publish(ctx, events.Event{
		Type:      events.TypeProfileFollowed,
		ProfileID: "p-target",
		ActorID:   "p-fan",
	}))

	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
	msg := <-c.Send
	assert.Contains(t, string(msg), `"profile.followed"`)
	assert.Contains(t, string(msg), `"p-fan"`)
}

func TestHub_KeysSurviveReusedCallerBuffer(t *testing.T) {
	hub := NewHub()

	// A string aliasing a byte buffer, the way fasthttp hands out params.
	buf := []byte("p-alice")
	aliased := unsafe.String(&buf[0], len(buf))

	client, err := hub.Register(aliased, 7, nil)
	require.NoError(t, err)
	copy(buf, "iles/ab")

	assert.Equal(t, "p-alice", client.ProfileID)
	assert.Equal(t, 1, hub.Watchers("p-alice"))

	hub.Broadcast("p-alice", []byte(`{"type":"profile.followed"}`))
	assert.Len(t, client.Send, 1)

	hub.DisconnectUser("p-alice", 7)
	assert.Zero(t, hub.Watchers("p-alice"))
	_, open := <-client.Send
	assert.True(t, open, "queued event is still readable")
	_, open = <-client.Send
	assert.False(t, open, "send queue closed after disconnect")
}
