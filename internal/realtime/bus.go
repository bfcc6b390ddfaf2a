package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/events"
)

// Delivery is one envelope addressed to one audience.
type Delivery struct {
	Envelope    events.Envelope `json:"envelope"`
	Target      events.Target   `json:"target"`
	ExcludeUser string          `json:"excludeUser,omitempty"`
}

// Bus carries deliveries to every hub that may hold the audience.
type Bus interface {
	Deliver(ctx context.Context, d Delivery) error
}

// LocalBus delivers straight into the process-local hub.
type LocalBus struct {
	hub *Hub
}

// NewLocalBus wraps hub.
func NewLocalBus(hub *Hub) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) Deliver(_ context.Context, d Delivery) error {
	b.hub.Deliver(d)
	return nil
}

// RedisBus fans deliveries out through a Redis channel so that every API
// instance can reach the connections it holds.
type RedisBus struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger

	mu  sync.Mutex
	sub *redis.PubSub
	wg  sync.WaitGroup
}

// NewRedisBus builds a bus publishing on channel.
func NewRedisBus(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: channel, hub: hub, logger: logger}
}

// Deliver publishes d; the local hub receives it through the subscription
// like every other instance.
func (b *RedisBus) Deliver(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes and returns once the subscription is confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	messages := sub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.receive(msg.Payload)
		}
	}()
	b.logger.Info("realtime redis bus subscribed", zap.String("channel", b.channel))
	return nil
}

func (b *RedisBus) receive(payload string) {
	var d Delivery
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		b.logger.Warn("dropping malformed delivery", zap.Error(err))
		return
	}
	b.hub.Deliver(d)
}

// Close ends the subscription and waits for the receive loop.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub == nil {
		return nil
	}
	err := sub.Close()
	b.wg.Wait()
	return err
}

var (
	_ Bus = (*LocalBus)(nil)
	_ Bus = (*RedisBus)(nil)
)
