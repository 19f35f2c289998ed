package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel used when none is configured
const DefaultChannel = "printmarket:realtime"

const defaultCloseTimeout = 5 * time.Second

// Envelope addresses an event to either a user or a room
type Envelope struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	Room   string    `json:"room,omitempty"`
	Event  Event     `json:"event"`
}

// Fanout distributes envelopes to every hub replica, including the sender
type Fanout interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, invoking deliver for each envelope in arrival order
	Subscribe(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// RedisFanout implements Fanout with Redis Pub/Sub. The client is shared and
// not closed here.
type RedisFanout struct {
	client    redis.UniversalClient
	channel   string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// NewRedisFanout creates a fan-out on channel
func NewRedisFanout(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisFanout {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFanout{
		client:  client,
		channel: channel,
		logger:  logger,
		doneCh:  make(chan struct{}),
	}
}

// Publish sends an envelope to all subscribers
func (f *RedisFanout) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime envelope: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.logger.Warn("Failed to publish realtime envelope",
			zap.String("channel", f.channel),
			zap.String("event_type", env.Event.Type),
			zap.Error(err))
		return fmt.Errorf("failed to publish realtime envelope: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until ctx is cancelled or Close is called
func (f *RedisFanout) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	f.mu.Lock()
	if f.isRunning {
		f.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	f.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	f.cancelFn = cancel
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.isRunning = false
		f.mu.Unlock()
		f.markDone()
	}()

	pubsub := f.client.Subscribe(subCtx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	f.logger.Info("Subscribed to realtime channel", zap.String("channel", f.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			f.logger.Info("Realtime subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				f.logger.Warn("Realtime channel closed")
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.logger.Error("Failed to unmarshal realtime envelope",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			f.safeDeliver(deliver, env)
		}
	}
}

func (f *RedisFanout) safeDeliver(deliver func(Envelope), env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Panic in realtime delivery", zap.Any("panic", r))
		}
	}()
	deliver(env)
}

func (f *RedisFanout) markDone() {
	f.doneOnce.Do(func() {
		close(f.doneCh)
	})
}

// Close stops a running subscription
func (f *RedisFanout) Close() error {
	f.mu.Lock()
	cancelFn := f.cancelFn
	f.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-f.doneCh:
		case <-time.After(defaultCloseTimeout):
			f.logger.Warn("Timeout waiting for realtime subscription to stop")
		}
	}
	return nil
}

var _ Fanout = (*RedisFanout)(nil)
