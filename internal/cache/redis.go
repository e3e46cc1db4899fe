// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ewczhang/poisoncake/internal/game"
)

// DefaultQueueName is the Redis list the room-event feed pushes onto.
const DefaultQueueName = "poisoncake_events"

// RoomEventRecord is one broadcast room event as seen by external
// consumers of the feed. Room state itself never touches Redis; the feed
// is a side channel, and losing it loses nothing the game needs.
type RoomEventRecord struct {
	RoomCode  string     `json:"room_code"`
	EventType string     `json:"event_type"`
	Event     game.Event `json:"event"`
	Timestamp int64      `json:"ts"`
}

// Publisher pushes room events onto a Redis queue, fire-and-forget.
// A nil *Publisher is valid and publishes nothing.
type Publisher struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// NewPublisher connects to Redis at addr and verifies the connection.
func NewPublisher(addr, queue string, logger *logrus.Logger) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: queue, logger: logger}, nil
}

// PublishAsync pushes the event onto the queue from a fresh goroutine so
// it can never block a room handler. Failures are logged and swallowed.
func (p *Publisher) PublishAsync(roomCode string, ev game.Event) {
	if p == nil {
		return
	}
	rec := RoomEventRecord{
		RoomCode:  roomCode,
		EventType: string(ev.Type),
		Event:     ev,
		Timestamp: time.Now().Unix(),
	}
	go func() {
		data, err := json.Marshal(rec)
		if err != nil {
			p.logger.Warnf("event feed: failed to marshal record: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.rdb.LPush(ctx, p.queue, data).Err(); err != nil {
			p.logger.Warnf("event feed: failed to push to %s: %v", p.queue, err)
		}
	}()
}

// Close releases the underlying Redis client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
