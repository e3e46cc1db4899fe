// internal/handlers/server_test.go
package handlers

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewczhang/poisoncake/internal/game"
)

func newTestServer() *GameServer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGameServer(logger, nil)
}

func newTestClient(s *GameServer) *client {
	c := &client{
		id:  uuid.New(),
		out: make(chan game.Event, 32),
	}
	s.register(c)
	return c
}

// drain returns every event currently queued for the client.
func drain(c *client) []game.Event {
	var out []game.Event
	for {
		select {
		case ev := <-c.out:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func requireEvent(t *testing.T, events []game.Event, typ game.EventType) game.Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == typ {
			return ev
		}
	}
	require.Failf(t, "missing event", "no %s in %v", typ, events)
	return game.Event{}
}

func TestCreateRoomRequiresName(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	s.handleIntent(c, Intent{Type: "createRoom", PlayerName: "   "})

	events := drain(c)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
	assert.Zero(t, s.Store.RoomCount())
}

func TestCreateAndJoinFlow(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	joiner := newTestClient(s)

	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	created := requireEvent(t, drain(host), game.EventRoomCreated)
	require.Len(t, created.Players, 1)
	require.NotEmpty(t, created.RoomID)

	s.handleIntent(joiner, Intent{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	joined := requireEvent(t, drain(joiner), game.EventJoinSuccess)
	assert.Equal(t, created.RoomID, joined.RoomID)
	assert.Len(t, joined.Players, 2)

	// The host hears about the new roster, the joiner does not get a
	// duplicate.
	update := requireEvent(t, drain(host), game.EventPlayerListUpdate)
	assert.Len(t, update.Players, 2)
	assert.Empty(t, update.DisconnectedPlayer)
}

func TestCreateRoomWhileMemberRejected(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	s.handleIntent(c, Intent{Type: "createRoom", PlayerName: "Alice"})
	drain(c)
	s.handleIntent(c, Intent{Type: "createRoom", PlayerName: "Alice"})

	events := drain(c)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
	assert.Equal(t, 1, s.Store.RoomCount())
}

func TestJoinUnknownRoomSurfacesError(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	s.handleIntent(c, Intent{Type: "joinRoom", RoomID: "ZZZZ99", PlayerName: "Bob"})

	events := drain(c)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
	assert.Contains(t, events[0].Message, "does not exist")
}

func TestMalformedIntentRejected(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	// Room codes are exactly six alphanumeric characters.
	s.handleIntent(c, Intent{Type: "joinRoom", RoomID: "zz", PlayerName: "Bob"})

	events := drain(c)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
}

func TestGameIntentsFromNonMemberIgnored(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	cake := 3
	s.handleIntent(c, Intent{Type: "rollDice"})
	s.handleIntent(c, Intent{Type: "eatCake", CakeID: &cake})
	s.handleIntent(c, Intent{Type: "returnToLobby"})

	assert.Empty(t, drain(c), "intents without room membership are dropped silently")
}

func TestUnknownIntentTypeSurfacesError(t *testing.T) {
	s := newTestServer()
	c := newTestClient(s)

	s.handleIntent(c, Intent{Type: "danceBattle"})

	events := drain(c)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
}

func TestStartGameBroadcastsToRoom(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	joiner := newTestClient(s)

	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	created := requireEvent(t, drain(host), game.EventRoomCreated)
	s.handleIntent(joiner, Intent{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	drain(host)
	drain(joiner)

	s.handleIntent(host, Intent{Type: "startGame", GridSize: 6})

	started := requireEvent(t, drain(host), game.EventGameStarted)
	require.NotNil(t, started.Room)
	assert.Equal(t, 6, started.Room.GridSize)
	assert.Equal(t, game.StateSetupPoison, started.Room.State)
	requireEvent(t, drain(joiner), game.EventGameStarted)
}

func TestStartGameAloneSurfacesError(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	drain(host)

	s.handleIntent(host, Intent{Type: "startGame", GridSize: 5})

	events := drain(host)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventRoomError, events[0].Type)
	assert.Contains(t, events[0].Message, "2 players")
}

func TestDisconnectBroadcastsRoster(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	joiner := newTestClient(s)

	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	created := requireEvent(t, drain(host), game.EventRoomCreated)
	s.handleIntent(joiner, Intent{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	drain(host)
	drain(joiner)

	s.disconnect(joiner)

	update := requireEvent(t, drain(host), game.EventPlayerListUpdate)
	assert.Equal(t, "Bob", update.DisconnectedPlayer)
	require.Len(t, update.Players, 1)
	assert.Equal(t, "Alice", update.Players[0].Name)
	assert.Equal(t, 1, s.ConnCount(), "host is still registered")
}

func TestDisconnectMidMatchResendsSnapshot(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	joiner := newTestClient(s)
	third := newTestClient(s)

	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	created := requireEvent(t, drain(host), game.EventRoomCreated)
	s.handleIntent(joiner, Intent{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	s.handleIntent(third, Intent{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Carol"})
	s.handleIntent(host, Intent{Type: "startGame", GridSize: 5})
	drain(host)
	drain(joiner)
	drain(third)

	s.disconnect(joiner)

	events := drain(host)
	snap := requireEvent(t, events, game.EventGameStateUpdate)
	require.NotNil(t, snap.Room)
	assert.Len(t, snap.Room.Players, 2)
	update := requireEvent(t, events, game.EventPlayerListUpdate)
	assert.Equal(t, "Bob", update.DisconnectedPlayer)
}

func TestDisconnectLastPlayerDestroysRoom(t *testing.T) {
	s := newTestServer()
	host := newTestClient(s)
	s.handleIntent(host, Intent{Type: "createRoom", PlayerName: "Alice"})
	drain(host)

	s.disconnect(host)
	assert.Zero(t, s.Store.RoomCount())
	assert.Zero(t, s.ConnCount())
}
