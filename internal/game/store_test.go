// internal/game/store_test.go
package game

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreateRoomCodeFormatAndHost(t *testing.T) {
	store := NewRoomStore()
	hostID := uuid.New()

	room, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)
	assert.Regexp(t, codePattern, room.Code)
	assert.Equal(t, StateLobby, room.State)
	assert.Equal(t, DefaultGridSize, room.GridSize)

	require.Len(t, room.Players, 1)
	assert.True(t, room.Players[0].IsHost)
	assert.True(t, room.Players[0].IsActive)

	found, ok := store.FindByIdentity(hostID)
	require.True(t, ok)
	assert.Same(t, room, found)
}

func TestCreateRoomCodesAreUnique(t *testing.T) {
	store := NewRoomStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := store.CreateRoom(uuid.New(), "host")
		require.NoError(t, err)
		assert.False(t, seen[room.Code], "duplicate live room code %s", room.Code)
		seen[room.Code] = true
	}
}

func TestCreateRoomWhileMemberRejected(t *testing.T) {
	store := NewRoomStore()
	hostID := uuid.New()
	_, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)

	_, err = store.CreateRoom(hostID, "Alice")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestJoinRoomErrors(t *testing.T) {
	store := NewRoomStore()
	hostID := uuid.New()
	room, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)

	_, err = store.JoinRoom("NOPE00", uuid.New(), "Bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// Codes are case-insensitive on the way in.
	joined, err := store.JoinRoom(strings.ToLower(room.Code), uuid.New(), "Bob")
	require.NoError(t, err)
	assert.Same(t, room, joined)

	_, err = store.JoinRoom(room.Code, uuid.New(), "Carol")
	require.NoError(t, err)

	_, err = store.JoinRoom(room.Code, uuid.New(), "Dave")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRoomAfterStartRejected(t *testing.T) {
	store := NewRoomStore()
	hostID := uuid.New()
	room, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)
	_, err = store.JoinRoom(room.Code, uuid.New(), "Bob")
	require.NoError(t, err)

	require.NoError(t, room.StartMatch(5))
	_, err = store.JoinRoom(room.Code, uuid.New(), "Carol")
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)
}

func TestJoinRoomWhileMemberRejected(t *testing.T) {
	store := NewRoomStore()
	room, err := store.CreateRoom(uuid.New(), "Alice")
	require.NoError(t, err)
	bobID := uuid.New()
	_, err = store.JoinRoom(room.Code, bobID, "Bob")
	require.NoError(t, err)

	_, err = store.JoinRoom(room.Code, bobID, "Bob")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

// Regression: a turn-holder disconnecting while CurrentPlayerIndex
// points at the last list slot used to leave the index out of bounds and
// crash the room. Removal must re-clamp it and leave the room playable.
func TestRemoveConnectionClampsTurnIndex(t *testing.T) {
	store := NewRoomStore()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	room, err := store.CreateRoom(ids[0], "Alice")
	require.NoError(t, err)
	_, err = store.JoinRoom(room.Code, ids[1], "Bob")
	require.NoError(t, err)
	_, err = store.JoinRoom(room.Code, ids[2], "Carol")
	require.NoError(t, err)

	// Put the room mid-match with Carol (index 2) to act.
	room.Mu.Lock()
	room.State = StateTurnBased
	for i, p := range room.Players {
		cell := i
		p.Poison = &cell
	}
	room.CurrentPlayerIndex = 2
	room.Mu.Unlock()

	_, res, ok := store.RemoveConnection(ids[2])
	require.True(t, ok)
	assert.False(t, res.Destroyed)
	assert.True(t, res.InMatch)
	assert.Equal(t, "Carol", res.Removed.Name)
	assert.Equal(t, 0, res.Snapshot.CurrentPlayerIndex)

	// The room stays playable for the survivors.
	room.EatCake(ids[0], 10)
	assert.Equal(t, StateTurnBased, roomState(room))
	assert.Equal(t, 1, roomIndex(room))
}

func TestRemoveConnectionPromotesHost(t *testing.T) {
	store := NewRoomStore()
	hostID, bobID := uuid.New(), uuid.New()
	room, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)
	_, err = store.JoinRoom(room.Code, bobID, "Bob")
	require.NoError(t, err)

	_, res, ok := store.RemoveConnection(hostID)
	require.True(t, ok)
	assert.False(t, res.Destroyed)
	require.Len(t, res.Remaining, 1)
	assert.Equal(t, "Bob", res.Remaining[0].Name)
	assert.True(t, res.Remaining[0].IsHost)
}

func TestRemoveLastConnectionDestroysRoom(t *testing.T) {
	store := NewRoomStore()
	hostID := uuid.New()
	room, err := store.CreateRoom(hostID, "Alice")
	require.NoError(t, err)

	_, res, ok := store.RemoveConnection(hostID)
	require.True(t, ok)
	assert.True(t, res.Destroyed)

	_, found := store.Get(room.Code)
	assert.False(t, found)
	_, found = store.FindByIdentity(hostID)
	assert.False(t, found)
	assert.Zero(t, store.RoomCount())
}

func TestRemoveUnknownIdentityIsNoop(t *testing.T) {
	store := NewRoomStore()
	_, _, ok := store.RemoveConnection(uuid.New())
	assert.False(t, ok)
}

// A roller disconnecting mid reveal-window must not let the stale timer
// mutate a destroyed room, and a surviving room must absorb the deferred
// transition against the re-clamped index.
func TestRevealTimerSurvivesDisconnect(t *testing.T) {
	store := NewRoomStore()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	room, err := store.CreateRoom(ids[0], "Alice")
	require.NoError(t, err)
	_, err = store.JoinRoom(room.Code, ids[1], "Bob")
	require.NoError(t, err)

	room.RevealDelay = 20 * time.Millisecond
	require.NoError(t, room.StartMatch(5))
	room.ChoosePoison(ids[0], 0)
	room.ChoosePoison(ids[1], 1)

	room.RollDice(ids[0])
	require.True(t, revealPending(room))

	// Both players vanish before the timer fires; the room is destroyed
	// and the pending timer cancelled.
	_, _, ok := store.RemoveConnection(ids[0])
	require.True(t, ok)
	_, res, ok := store.RemoveConnection(ids[1])
	require.True(t, ok)
	require.True(t, res.Destroyed)
	assert.False(t, revealPending(room))
}
