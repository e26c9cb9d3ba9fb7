package chathub_test

import (
	"testing"

	"pulse/backend/internal/chathub"
	"pulse/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(text string) models.Envelope {
	return models.NewEnvelope(models.EventNotification, models.NotificationPayload{Message: text}, "")
}

func TestHub_RegisterCountsConnectionsPerUser(t *testing.T) {
	hub := chathub.NewHub()
	tab1 := newTestClient("c1", "u1")
	tab2 := newTestClient("c2", "u1")

	first, err := hub.Register(tab1)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = hub.Register(tab2)
	require.NoError(t, err)
	assert.False(t, first, "second tab of the same user")
	assert.Equal(t, 2, hub.ConnectionCount("u1"))
	assert.Equal(t, 2, hub.Len())

	assert.False(t, hub.Unregister(tab1))
	assert.True(t, tab1.isClosed())
	assert.True(t, hub.Unregister(tab2), "last connection of u1")
	assert.Equal(t, 0, hub.ConnectionCount("u1"))
}

func TestHub_UnregisterUnknownIsIgnored(t *testing.T) {
	hub := chathub.NewHub()
	c := newTestClient("c1", "u1")

	assert.False(t, hub.Unregister(c))
	assert.False(t, c.isClosed())
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	hub := chathub.NewHub()
	c := newTestClient("c1", "u1")
	_, err := hub.Register(c)
	require.NoError(t, err)
	hub.Join("c1", "lobby")
	require.True(t, hub.InRoom("c1", "lobby"))

	hub.Unregister(c)

	assert.False(t, hub.InRoom("c1", "lobby"))
	assert.Equal(t, 0, hub.EmitRoom("lobby", note("x"), ""))
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub := chathub.NewHub()

	hub.Join("ghost", "lobby")

	assert.False(t, hub.InRoom("ghost", "lobby"))
}

func TestHub_EmitRoomExcludes(t *testing.T) {
	hub := chathub.NewHub()
	a := newTestClient("a", "u1")
	b := newTestClient("b", "u2")
	outsider := newTestClient("c", "u3")
	for _, c := range []*testClient{a, b, outsider} {
		_, err := hub.Register(c)
		require.NoError(t, err)
	}
	hub.Join("a", "lobby")
	hub.Join("b", "lobby")

	n := hub.EmitRoom("lobby", note("hi"), "a")

	assert.Equal(t, 1, n)
	assert.Empty(t, a.drain())
	assert.Len(t, b.drain(), 1)
	assert.Empty(t, outsider.drain())

	hub.Leave("b", "lobby")
	assert.Equal(t, 1, hub.EmitRoom("lobby", note("again"), ""))
	assert.Len(t, a.drain(), 1)
	assert.Empty(t, b.drain())
}

func TestHub_EmitToUserReachesEveryTab(t *testing.T) {
	hub := chathub.NewHub()
	tab1 := newTestClient("c1", "u1")
	tab2 := newTestClient("c2", "u1")
	for _, c := range []*testClient{tab1, tab2} {
		_, err := hub.Register(c)
		require.NoError(t, err)
		hub.Join(c.ID(), chathub.PrivateRoom("u1"))
	}

	assert.Equal(t, 2, hub.EmitToUser("u1", note("ping")))
	assert.Len(t, tab1.drain(), 1)
	assert.Len(t, tab2.drain(), 1)
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := chathub.NewHub()
	slow := newTestClientSize("slow", "u1", 1)
	fast := newTestClient("fast", "u2")
	for _, c := range []*testClient{slow, fast} {
		_, err := hub.Register(c)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, hub.EmitAll(note("one")))
	assert.Equal(t, 1, hub.EmitAll(note("two")), "slow client's copy is dropped")

	assert.Len(t, slow.drain(), 1)
	assert.Len(t, fast.drain(), 2)
}

func TestHub_Shutdown(t *testing.T) {
	hub := chathub.NewHub()
	c := newTestClient("c1", "u1")
	_, err := hub.Register(c)
	require.NoError(t, err)

	hub.Shutdown()
	hub.Shutdown()

	assert.True(t, c.isClosed())
	assert.Equal(t, 0, hub.EmitAll(note("late")))
	assert.False(t, hub.EmitTo("c1", note("late")))

	_, err = hub.Register(newTestClient("c2", "u2"))
	assert.ErrorIs(t, err, chathub.ErrHubClosed)

	assert.NotPanics(t, func() { hub.Unregister(c) }, "sessions still unregister after shutdown")
}
