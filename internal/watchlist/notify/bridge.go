package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bridgeChannel = "watchlist:alerts:events"

// envelope wraps a push payload with its origin so a replica can skip its
// own republished messages.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge republishes hub events over Redis pub/sub so operator sessions
// connected to other replicas receive them too. Everything here is
// best-effort; a publish or subscribe failure only costs a push.
type Bridge struct {
	client     *redis.Client
	hub        *Hub
	instanceID string
	logger     *zap.Logger
}

var _ Publisher = (*Bridge)(nil)

// NewBridge creates a Bridge and attaches it to the hub
func NewBridge(client *redis.Client, hub *Hub, logger *zap.Logger) *Bridge {
	b := &Bridge{
		client:     client,
		hub:        hub,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
	hub.SetPublisher(b)
	return b
}

// Publish sends a locally produced payload to the other replicas
func (b *Bridge) Publish(ctx context.Context, payload []byte) {
	data, err := json.Marshal(envelope{Origin: b.instanceID, Payload: payload})
	if err != nil {
		b.logger.Warn("bridge envelope marshaling failed", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, bridgeChannel, data).Err(); err != nil {
		b.logger.Warn("bridge publish failed", zap.Error(err))
	}
}

// Run subscribes to the bridge channel and feeds remote payloads into the
// local hub until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("bridge message unreadable", zap.Error(err))
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			b.hub.Deliver(env.Payload)
		}
	}
}
