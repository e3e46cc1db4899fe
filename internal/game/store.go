// internal/game/store.go
package game

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RoomStore owns every live room, keyed by its join code, with a direct
// identity→room index so membership lookups stay O(1) under churn.
// Rooms exist only in memory and die with the process.
type RoomStore struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	byMember map[uuid.UUID]*Room
}

// NewRoomStore returns an empty in-memory store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:    make(map[string]*Room),
		byMember: make(map[uuid.UUID]*Room),
	}
}

// CreateRoom mints a fresh room with a unique code and the given
// connection as host. Fails when the connection already belongs to a room.
func (s *RoomStore) CreateRoom(hostID uuid.UUID, hostName string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byMember[hostID]; taken {
		return nil, ErrAlreadyInRoom
	}

	code := newRoomCode()
	for _, exists := s.rooms[code]; exists; _, exists = s.rooms[code] {
		code = newRoomCode()
	}

	room := NewRoom(code)
	room.Players = append(room.Players, &Player{
		ID:       hostID,
		Name:     hostName,
		IsHost:   true,
		IsActive: true,
	})

	s.rooms[code] = room
	s.byMember[hostID] = room
	return room, nil
}

// Get looks a room up by code. Codes are case-insensitive on the way in.
func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[strings.ToUpper(code)]
	return room, ok
}

// FindByIdentity resolves a connection identity to its room, if any.
func (s *RoomStore) FindByIdentity(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.byMember[id]
	return room, ok
}

// JoinRoom appends a new non-host player to a lobby-state room.
func (s *RoomStore) JoinRoom(code string, id uuid.UUID, name string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byMember[id]; taken {
		return nil, ErrAlreadyInRoom
	}
	room, ok := s.rooms[strings.ToUpper(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.State != StateLobby {
		return nil, ErrMatchAlreadyStarted
	}
	if len(room.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}

	room.Players = append(room.Players, &Player{
		ID:       id,
		Name:     name,
		IsActive: true,
	})
	s.byMember[id] = room
	return room, nil
}

// RemoveResult describes what happened when a connection left its room,
// captured under the room lock so the coordinator can broadcast without
// re-reading shared state.
type RemoveResult struct {
	Removed   Player
	Destroyed bool

	// InMatch is true when the room was past LOBBY at removal time, in
	// which case the coordinator re-broadcasts a snapshot: the removal
	// may have re-clamped CurrentPlayerIndex.
	InMatch  bool
	Snapshot *Snapshot

	Remaining []Player
	MemberIDs []uuid.UUID
}

// RemoveConnection removes the identity's player from its room, if any.
// An emptied room is destroyed (pending reveal timers cancelled);
// otherwise the first remaining player inherits host if the host left,
// and mid-match an out-of-range CurrentPlayerIndex is reset to 0.
//
// The clamp is a deliberate approximation: it restores the index
// invariant without trying to pick the fairest next player, because
// ending the match for everyone would be worse.
func (s *RoomStore) RemoveConnection(id uuid.UUID) (*Room, RemoveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.byMember[id]
	if !ok {
		return nil, RemoveResult{}, false
	}
	delete(s.byMember, id)

	room.Mu.Lock()
	defer room.Mu.Unlock()

	idx := lo.IndexOf(room.MemberIDsUnsafe(), id)
	if idx < 0 {
		return nil, RemoveResult{}, false
	}
	res := RemoveResult{Removed: *room.Players[idx]}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if len(room.Players) == 0 {
		delete(s.rooms, room.Code)
		room.markDestroyedUnsafe()
		res.Destroyed = true
		return room, res, true
	}

	if room.State != StateLobby {
		res.InMatch = true
		if room.CurrentPlayerIndex >= len(room.Players) {
			room.CurrentPlayerIndex = 0
		}
	}
	if res.Removed.IsHost {
		room.Players[0].IsHost = true
	}

	res.Snapshot = room.snapshotUnsafe()
	res.Remaining = res.Snapshot.Players
	res.MemberIDs = room.MemberIDsUnsafe()
	return room, res, true
}

// RoomCount reports the number of live rooms, for the status logger.
func (s *RoomStore) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
