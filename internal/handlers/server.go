// internal/handlers/server.go
package handlers

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ewczhang/poisoncake/internal/cache"
	"github.com/ewczhang/poisoncake/internal/game"
)

// Intent is the envelope for every client→server message. Which fields
// are required depends on Type; the validator tags cover shape only.
type Intent struct {
	Type       string `json:"type" validate:"required"`
	PlayerName string `json:"playerName" validate:"max=32"`
	RoomID     string `json:"roomId" validate:"omitempty,alphanum,len=6"`
	GridSize   int    `json:"gridSize" validate:"omitempty,min=3,max=10"`
	CakeID     *int   `json:"cakeId" validate:"omitempty,min=0"`
}

// client is one live connection: a transient identity minted at accept
// time plus a buffered outbound channel drained by its write pump.
type client struct {
	id     uuid.UUID
	out    chan game.Event
	cancel func()
}

// send pushes an event onto the client's outbound channel without
// blocking. A stuck or closed connection drops the message; the snapshot
// on the next state change reconciles the client anyway.
func (c *client) send(logger *logrus.Logger, ev game.Event) {
	select {
	case c.out <- ev:
	default:
		logger.WithFields(logrus.Fields{
			"conn": c.id,
			"type": ev.Type,
		}).Warn("outbound channel full, dropping event")
	}
}

// GameServer is the room coordinator and broadcast gateway: it owns the
// connection registry, resolves intents against the room store, and
// wires every room's broadcast callback back to the registered
// connections.
type GameServer struct {
	Store *game.RoomStore

	logger   *logrus.Logger
	feed     *cache.Publisher // nil when the event feed is disabled
	validate *validator.Validate

	mu    sync.Mutex
	conns map[uuid.UUID]*client
}

// NewGameServer builds a coordinator around a fresh room store. feed may
// be nil.
func NewGameServer(logger *logrus.Logger, feed *cache.Publisher) *GameServer {
	return &GameServer{
		Store:    game.NewRoomStore(),
		logger:   logger,
		feed:     feed,
		validate: validator.New(),
		conns:    make(map[uuid.UUID]*client),
	}
}

// ConnCount reports the number of live connections, for the status logger.
func (s *GameServer) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *GameServer) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.id] = c
}

// sendTo delivers an event to a single connection, if still registered.
func (s *GameServer) sendTo(id uuid.UUID, ev game.Event) {
	s.mu.Lock()
	c, ok := s.conns[id]
	s.mu.Unlock()
	if ok {
		c.send(s.logger, ev)
	}
}

func (s *GameServer) sendToAll(ids []uuid.UUID, ev game.Event) {
	for _, id := range ids {
		s.sendTo(id, ev)
	}
}

// attach wires a freshly created room's broadcast callback to the
// connection registry and the optional event feed. The callback runs
// with the room lock held, so it only touches non-blocking paths.
func (s *GameServer) attach(room *game.Room) {
	room.BroadcastFn = func(ev game.Event) {
		s.sendToAll(room.MemberIDsUnsafe(), ev)
		s.feed.PublishAsync(room.Code, ev)
	}
}

// errorTo surfaces a user-facing failure to the requesting connection only.
func (s *GameServer) errorTo(c *client, msg string) {
	c.send(s.logger, game.Event{Type: game.EventRoomError, Message: msg})
}

// handleIntent dispatches one decoded client message. Registered once
// per connection, directly — no layered listener overriding.
func (s *GameServer) handleIntent(c *client, in Intent) {
	if err := s.validate.Struct(in); err != nil {
		s.logger.WithFields(logrus.Fields{"conn": c.id, "err": err}).Warn("rejecting malformed intent")
		s.errorTo(c, "Invalid message.")
		return
	}

	switch in.Type {
	case "createRoom":
		s.handleCreateRoom(c, in)
	case "joinRoom":
		s.handleJoinRoom(c, in)
	case "startGame":
		if room, ok := s.Store.FindByIdentity(c.id); ok {
			if err := room.StartMatch(in.GridSize); err != nil {
				s.errorTo(c, capitalize(err.Error()))
			}
		}
	case "choosePoison":
		if room, ok := s.Store.FindByIdentity(c.id); ok && in.CakeID != nil {
			room.ChoosePoison(c.id, *in.CakeID)
		}
	case "rollDice":
		if room, ok := s.Store.FindByIdentity(c.id); ok {
			room.RollDice(c.id)
		}
	case "eatCake":
		if room, ok := s.Store.FindByIdentity(c.id); ok && in.CakeID != nil {
			room.EatCake(c.id, *in.CakeID)
		}
	case "returnToLobby":
		if room, ok := s.Store.FindByIdentity(c.id); ok {
			room.ReturnToLobby()
		}
	default:
		s.logger.WithFields(logrus.Fields{"conn": c.id, "type": in.Type}).Warn("unknown intent type")
		s.errorTo(c, "Unknown intent type: "+in.Type)
	}
}

func (s *GameServer) handleCreateRoom(c *client, in Intent) {
	name := strings.TrimSpace(in.PlayerName)
	if name == "" {
		s.errorTo(c, "A player name is required.")
		return
	}

	room, err := s.Store.CreateRoom(c.id, name)
	if err != nil {
		s.errorTo(c, capitalize(err.Error()))
		return
	}
	s.attach(room)

	s.logger.WithFields(logrus.Fields{"room": room.Code, "host": name}).Info("room created")
	c.send(s.logger, game.Event{
		Type:    game.EventRoomCreated,
		RoomID:  room.Code,
		Players: room.PlayersView(),
	})
}

func (s *GameServer) handleJoinRoom(c *client, in Intent) {
	name := strings.TrimSpace(in.PlayerName)
	if name == "" {
		s.errorTo(c, "A player name is required.")
		return
	}
	if in.RoomID == "" {
		s.errorTo(c, "A room code is required.")
		return
	}

	room, err := s.Store.JoinRoom(in.RoomID, c.id, name)
	if err != nil {
		s.errorTo(c, capitalize(err.Error()))
		return
	}

	s.logger.WithFields(logrus.Fields{"room": room.Code, "player": name}).Info("player joined")
	players := room.PlayersView()
	c.send(s.logger, game.Event{
		Type:    game.EventJoinSuccess,
		RoomID:  room.Code,
		Players: players,
	})
	for _, id := range room.MemberIDs() {
		if id != c.id {
			s.sendTo(id, game.Event{Type: game.EventPlayerListUpdate, Players: players})
		}
	}
	s.feed.PublishAsync(room.Code, game.Event{Type: game.EventPlayerListUpdate, Players: players})
}

// disconnect tears the connection down: out of the registry, out of its
// room, and — mid-match — a fresh snapshot so remaining clients see the
// re-clamped turn index before the roster update.
func (s *GameServer) disconnect(c *client) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	room, res, ok := s.Store.RemoveConnection(c.id)
	if !ok {
		return
	}
	if res.Destroyed {
		s.logger.WithFields(logrus.Fields{"room": room.Code}).Info("room closed, last player left")
		return
	}

	s.logger.WithFields(logrus.Fields{"room": room.Code, "player": res.Removed.Name}).Info("player disconnected")
	if res.InMatch {
		s.sendToAll(res.MemberIDs, game.Event{Type: game.EventGameStateUpdate, Room: res.Snapshot})
	}
	update := game.Event{
		Type:               game.EventPlayerListUpdate,
		Players:            res.Remaining,
		DisconnectedPlayer: res.Removed.Name,
	}
	s.sendToAll(res.MemberIDs, update)
	s.feed.PublishAsync(room.Code, update)
}

func capitalize(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
