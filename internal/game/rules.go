// internal/game/rules.go
//
// The rules engine for one room: poison selection, dice ordering, eating
// cakes, and win/elimination detection. The same engine backs the
// networked game and any local single-device variant; it knows nothing
// about transports and reports outcomes only through the room's
// injected BroadcastFn.
package game

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// rollDie is replaced in tests for deterministic ordering.
var rollDie = func() int { return rand.Intn(6) + 1 }

// StartMatch moves the room from LOBBY into SETUP_POISON with the given
// grid size. Fails when the lobby is too small, the grid size is out of
// bounds, or a match is already running.
func (r *Room) StartMatch(gridSize int) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.State != StateLobby {
		return ErrMatchAlreadyStarted
	}
	if len(r.Players) < MinPlayers {
		return ErrInsufficientPlayers
	}
	if gridSize < MinGridSize || gridSize > MaxGridSize {
		return ErrInvalidConfiguration
	}

	r.GridSize = gridSize
	r.State = StateSetupPoison
	r.CurrentPlayerIndex = 0
	r.Eaten = make(map[int]bool)

	r.broadcastUnsafe(Event{Type: EventGameStarted, Room: r.snapshotUnsafe()})
	return nil
}

// ChoosePoison records the acting player's secret poison cell and passes
// the pick to the next player; after the last pick the room moves to
// ROLL_DICE. Messages from the wrong player, the wrong phase, or with an
// out-of-range cell are dropped silently as stale client traffic.
//
// Two players choosing the same cell is valid — a shared trap, not a
// collision.
func (r *Room) ChoosePoison(actor uuid.UUID, cell int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.State != StateSetupPoison {
		return
	}
	p := r.currentPlayerUnsafe()
	if p == nil || p.ID != actor {
		return
	}
	if cell < 0 || cell >= r.GridSize*r.GridSize {
		return
	}

	chosen := cell
	p.Poison = &chosen
	r.CurrentPlayerIndex++
	if r.CurrentPlayerIndex >= len(r.Players) {
		r.State = StateRollDice
		r.CurrentPlayerIndex = 0
	}

	r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
}

// RollDice records a 1–6 roll for the acting player and announces it
// immediately; the turn advance (and, after the last roll, the ordering
// sort and the ROLL_DICE→TURN_BASED transition) is deferred by
// RevealDelay so the announcement can be absorbed before the next
// snapshot lands.
//
// While a reveal timer is pending every rollDice intent for the room is
// dropped, including one from the same player — without this guard a
// duplicate message would re-roll and schedule a second advance.
func (r *Room) RollDice(actor uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.State != StateRollDice || r.revealTimer != nil {
		return
	}
	p := r.currentPlayerUnsafe()
	if p == nil || p.ID != actor {
		return
	}

	p.LastRoll = rollDie()
	r.broadcastUnsafe(Event{Type: EventDiceRolled, PlayerName: p.Name, Roll: p.LastRoll})

	delay := r.RevealDelay
	if delay <= 0 {
		delay = DefaultRevealDelay
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		// The room may have been torn down, or this timer superseded,
		// between firing and acquiring the lock.
		if r.destroyed || r.revealTimer != timer {
			return
		}
		r.revealTimer = nil
		r.finishRollUnsafe()
	})
	r.revealTimer = timer
}

// finishRollUnsafe applies the deferred part of a dice roll. A player
// may have disconnected during the reveal window; removal already
// re-clamped CurrentPlayerIndex, so the advance below stays in range.
// Assumes Mu is held.
func (r *Room) finishRollUnsafe() {
	if r.State != StateRollDice {
		return
	}
	r.CurrentPlayerIndex++
	if r.CurrentPlayerIndex >= len(r.Players) {
		// Stable descending sort: simultaneous high rolls keep their
		// original relative order, which is the tie-break policy.
		sort.SliceStable(r.Players, func(i, j int) bool {
			return r.Players[i].LastRoll > r.Players[j].LastRoll
		})
		r.State = StateTurnBased
		r.CurrentPlayerIndex = 0
	}
	r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
}

// EatCake applies the acting player's cell pick during the turn-based
// phase. Repeat picks of an already-eaten cell are dropped idempotently.
//
// The win/elimination decision table, in order:
//
//  1. nobody's poison       → cell is safe, turn passes to the next active player
//  2. someone else's poison → match over, every owner is a co-winner
//  3. own poison, and another player shares the trap
//     → eater out, match over, the other owners win
//  4. own poison, exactly one other active player
//     → eater out, match over, that player is the sole winner
//  5. own poison, two or more other active players
//     → eater out, match CONTINUES with the eater skipped (the one
//     non-terminal poisoned-cell outcome)
//  6. own poison, nobody active left → draw
func (r *Room) EatCake(actor uuid.UUID, cell int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.State != StateTurnBased {
		return
	}
	eater := r.currentPlayerUnsafe()
	if eater == nil || eater.ID != actor {
		return
	}
	if cell < 0 || cell >= r.GridSize*r.GridSize {
		return
	}
	if r.Eaten[cell] {
		return
	}
	r.Eaten[cell] = true

	eaten := cell
	owners := lo.Filter(r.Players, func(p *Player, _ int) bool {
		return p.Poison != nil && *p.Poison == cell
	})

	// Case 1: the cake is safe.
	if len(owners) == 0 {
		if !r.advanceToNextActiveUnsafe() {
			// Should be unreachable: eliminations end the match before the
			// rotation empties. Handled defensively as a draw.
			r.State = StateGameOver
			r.broadcastUnsafe(Event{Type: EventGameOver, CakeID: &eaten,
				Message: "No active players remain. The match is a draw!"})
			r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
			return
		}
		r.broadcastUnsafe(Event{Type: EventCakeEaten, CakeID: &eaten,
			NextPlayerName: r.currentPlayerUnsafe().Name})
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
		return
	}

	// Case 2: poison owned by others only.
	if !lo.ContainsBy(owners, func(p *Player) bool { return p.ID == eater.ID }) {
		r.State = StateGameOver
		names := joinNames(owners)
		r.broadcastUnsafe(Event{Type: EventGameOver, CakeID: &eaten,
			Message: fmt.Sprintf("%s ate %s's poison! %s wins!", eater.Name, names, names)})
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
		return
	}

	// The eater ate their own poison.
	eater.IsActive = false
	otherOwners := lo.Filter(owners, func(p *Player, _ int) bool { return p.ID != eater.ID })

	// Case 3: a shared trap — self-elimination does not cancel it.
	if len(otherOwners) > 0 {
		r.State = StateGameOver
		names := joinNames(otherOwners)
		r.broadcastUnsafe(Event{Type: EventGameOver, CakeID: &eaten,
			Message: fmt.Sprintf("%s is out on their own poison, but %s picked this cake too! %s wins!",
				eater.Name, names, names)})
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
		return
	}

	remaining := lo.Filter(r.Players, func(p *Player, _ int) bool { return p.IsActive })
	switch {
	// Case 4: one survivor takes the match.
	case len(remaining) == 1:
		r.State = StateGameOver
		r.broadcastUnsafe(Event{Type: EventGameOver, CakeID: &eaten,
			Message: fmt.Sprintf("%s is out on their own poison! %s takes the win!",
				eater.Name, remaining[0].Name)})
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})

	// Case 5: the match continues without the eater.
	case len(remaining) > 1:
		r.broadcastUnsafe(Event{Type: EventPlayerEliminated, PlayerName: eater.Name, CakeID: &eaten})
		r.advanceToNextActiveUnsafe()
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})

	// Case 6: everybody is out.
	default:
		r.State = StateGameOver
		r.broadcastUnsafe(Event{Type: EventGameOver, CakeID: &eaten,
			Message: "Everyone is out! The match is a draw!"})
		r.broadcastUnsafe(Event{Type: EventGameStateUpdate, Room: r.snapshotUnsafe()})
	}
}

// ReturnToLobby resets the room for a rematch: back to LOBBY with every
// player's poison, roll and active flag cleared. Invoked post-match in
// practice, but safe from any state.
func (r *Room) ReturnToLobby() {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	r.cancelRevealUnsafe()
	r.State = StateLobby
	r.CurrentPlayerIndex = 0
	r.Eaten = make(map[int]bool)
	for _, p := range r.Players {
		p.Poison = nil
		p.LastRoll = 0
		p.IsActive = true
	}

	r.broadcastUnsafe(Event{Type: EventBackToLobby, Room: r.snapshotUnsafe()})
}

func joinNames(players []*Player) string {
	return strings.Join(lo.Map(players, func(p *Player, _ int) string { return p.Name }), " and ")
}
