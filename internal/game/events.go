// internal/game/events.go
package game

// EventType names a server→client event on the wire.
type EventType string

const (
	EventRoomCreated      EventType = "roomCreated"
	EventJoinSuccess      EventType = "joinSuccess"
	EventPlayerListUpdate EventType = "playerListUpdate"
	EventRoomError        EventType = "roomError"
	EventGameStarted      EventType = "gameStarted"
	EventGameStateUpdate  EventType = "gameStateUpdate"
	EventDiceRolled       EventType = "diceRolled"
	EventCakeEaten        EventType = "cakeEaten"
	EventPlayerEliminated EventType = "playerEliminated"
	EventGameOver         EventType = "gameOver"
	EventBackToLobby      EventType = "backToLobby"
)

// Event is the single envelope for every server→client message. Fields
// are omitted from the JSON unless the event type uses them. CakeID is a
// pointer because cell 0 is a valid cake.
type Event struct {
	Type EventType `json:"type"`

	RoomID             string   `json:"roomId,omitempty"`
	Players            []Player `json:"players,omitempty"`
	DisconnectedPlayer string   `json:"disconnectedPlayer,omitempty"`

	Message string `json:"message,omitempty"`

	// Room carries the full reconciliation snapshot on state-changing events.
	Room *Snapshot `json:"room,omitempty"`

	PlayerName     string `json:"playerName,omitempty"`
	Roll           int    `json:"roll,omitempty"`
	CakeID         *int   `json:"cakeId,omitempty"`
	NextPlayerName string `json:"nextPlayerName,omitempty"`
}
