// internal/game/errors.go
package game

import "errors"

// Room error taxonomy. Each of these surfaces to the requesting
// connection only, as a roomError event with the message below. Turn,
// state and identity mismatches are deliberately absent: those are
// treated as stale or duplicate client messages and dropped without a
// response.
var (
	ErrRoomNotFound         = errors.New("that room does not exist")
	ErrRoomFull             = errors.New("that room is already full")
	ErrMatchAlreadyStarted  = errors.New("the match has already started")
	ErrInsufficientPlayers  = errors.New("at least 2 players are needed to start")
	ErrInvalidConfiguration = errors.New("grid size must be between 3 and 10")
	ErrAlreadyInRoom        = errors.New("you already belong to a room")
)
