// internal/game/room.go
package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// GameState is the single authoritative phase value for a room.
type GameState string

const (
	StateLobby       GameState = "LOBBY"
	StateSetupPoison GameState = "SETUP_POISON"
	StateRollDice    GameState = "ROLL_DICE"
	StateTurnBased   GameState = "TURN_BASED"
	StateGameOver    GameState = "GAME_OVER"
)

const (
	MinPlayers = 2
	MaxPlayers = 3

	MinGridSize     = 3
	MaxGridSize     = 10
	DefaultGridSize = 5

	// DefaultRevealDelay is how long a dice roll announcement stays on
	// screen before the turn advances and the next snapshot broadcasts.
	DefaultRevealDelay = 1500 * time.Millisecond
)

// Player is one seat in a room. Poison is nil until the player picks a
// cell during setup. IsActive=false means eliminated but still occupying
// a turn-order slot until the match ends or the room resets.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	IsActive bool      `json:"isActive"`
	Poison   *int      `json:"poison"`
	LastRoll int       `json:"diceRoll"`
}

// Room holds the entire state of one match instance in memory.
//
// Every mutation path serializes on Mu: intent handlers, the disconnect
// path and the deferred reveal-timer continuation all lock the room for
// their whole critical section, so invariants like
// 0 <= CurrentPlayerIndex < len(Players) hold between any two handlers.
type Room struct {
	Code               string
	Players            []*Player
	GridSize           int
	State              GameState
	CurrentPlayerIndex int

	// Eaten tracks cells already eaten this match so repeat clicks on the
	// same cell are dropped idempotently.
	Eaten map[int]bool

	// RevealDelay is the pause between the diceRolled announcement and
	// the turn advancing. Tests shorten it.
	RevealDelay time.Duration

	// BroadcastFn sends an event to every connection currently joined to
	// the room. It is invoked with Mu held and must not block; the
	// coordinator wires it to non-blocking per-connection channels. Nil
	// means nothing is sent (tests replace it with a collector).
	BroadcastFn func(Event)

	Mu sync.Mutex

	revealTimer *time.Timer
	destroyed   bool
}

// NewRoom returns a lobby-state room with the given code and no players.
func NewRoom(code string) *Room {
	return &Room{
		Code:        code,
		State:       StateLobby,
		GridSize:    DefaultGridSize,
		Eaten:       make(map[int]bool),
		RevealDelay: DefaultRevealDelay,
	}
}

// Snapshot is the full reconciliation view of a room sent to clients
// after every state-changing event. It carries every player's poison:
// the server trusts connections entirely and hiding is a client concern.
type Snapshot struct {
	Code               string    `json:"code"`
	Players            []Player  `json:"players"`
	GridSize           int       `json:"gridSize"`
	State              GameState `json:"gameState"`
	CurrentPlayerIndex int       `json:"currentPlayerIndex"`
	EatenCakes         []int     `json:"eatenCakes"`
}

// snapshotUnsafe builds a Snapshot from current state. Assumes Mu is held.
func (r *Room) snapshotUnsafe() *Snapshot {
	players := make([]Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = *p
	}
	eaten := lo.Keys(r.Eaten)
	sort.Ints(eaten)
	return &Snapshot{
		Code:               r.Code,
		Players:            players,
		GridSize:           r.GridSize,
		State:              r.State,
		CurrentPlayerIndex: r.CurrentPlayerIndex,
		EatenCakes:         eaten,
	}
}

// Snapshot returns the current reconciliation view (public, acquires lock).
func (r *Room) Snapshot() *Snapshot {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.snapshotUnsafe()
}

// PlayersView returns value copies of the ordered player list.
func (r *Room) PlayersView() []Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	players := make([]Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = *p
	}
	return players
}

// MemberIDsUnsafe returns the identities of every player in the room.
// Assumes Mu is held; the injected BroadcastFn relies on this.
func (r *Room) MemberIDsUnsafe() []uuid.UUID {
	return lo.Map(r.Players, func(p *Player, _ int) uuid.UUID { return p.ID })
}

// MemberIDs returns player identities (public, acquires lock).
func (r *Room) MemberIDs() []uuid.UUID {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.MemberIDsUnsafe()
}

// currentPlayerUnsafe returns the player whose turn it is, or nil when
// the index is out of range or the room is empty. Assumes Mu is held.
func (r *Room) currentPlayerUnsafe() *Player {
	if r.CurrentPlayerIndex < 0 || r.CurrentPlayerIndex >= len(r.Players) {
		return nil
	}
	return r.Players[r.CurrentPlayerIndex]
}

// broadcastUnsafe emits an event through the injected BroadcastFn.
// Assumes Mu is held.
func (r *Room) broadcastUnsafe(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

// advanceToNextActiveUnsafe moves CurrentPlayerIndex to the next player
// with IsActive=true, cyclically. Returns false when no active player
// remains. Assumes Mu is held.
func (r *Room) advanceToNextActiveUnsafe() bool {
	if len(r.Players) == 0 || lo.NoneBy(r.Players, func(p *Player) bool { return p.IsActive }) {
		return false
	}
	idx := (r.CurrentPlayerIndex + 1) % len(r.Players)
	for !r.Players[idx].IsActive {
		idx = (idx + 1) % len(r.Players)
	}
	r.CurrentPlayerIndex = idx
	return true
}

// cancelRevealUnsafe stops a pending reveal timer, if any. The timer
// callback checks revealTimer identity after re-locking, so a callback
// that already fired but has not run yet becomes a no-op. Assumes Mu is held.
func (r *Room) cancelRevealUnsafe() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
}

// markDestroyedUnsafe flags the room as torn down so any in-flight timer
// callback bails out instead of mutating a room the store no longer owns.
// Assumes Mu is held; called by the store when the last player leaves.
func (r *Room) markDestroyedUnsafe() {
	r.destroyed = true
	r.cancelRevealUnsafe()
}
