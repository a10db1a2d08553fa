package pushchannel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ ports.PushChannel = (*RedisChannel)(nil)

type RedisConfig struct {
	Address         string
	Password        string
	DB              int
	PoolSize        int
	EventsChannel   string
	CommandsChannel string
	ReconnectDelay  time.Duration
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(cfg RedisConfig, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Infow("Connected to Redis", "address", cfg.Address, "db", cfg.DB, "pool_size", cfg.PoolSize)
	}
	return client, nil
}

// RedisChannel is the push channel over Redis pub/sub: the capture pipeline
// publishes envelopes on the events channel and consumes commands from the
// commands channel.
type RedisChannel struct {
	client          *redis.Client
	eventsChannel   string
	commandsChannel string
	reconnectDelay  time.Duration
	logger          *zap.SugaredLogger

	connected atomic.Bool
	closed    atomic.Bool
}

// NewRedisChannel binds a push channel to client. The client is owned by the
// caller.
func NewRedisChannel(client *redis.Client, cfg RedisConfig, logger *zap.SugaredLogger) (*RedisChannel, error) {
	if client == nil {
		return nil, fmt.Errorf("redis push channel: %w: redis client", domain.ErrMissingCollaborator)
	}
	if cfg.EventsChannel == "" || cfg.CommandsChannel == "" {
		return nil, fmt.Errorf("redis push channel: events and commands channels are required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisChannel{
		client:          client,
		eventsChannel:   cfg.EventsChannel,
		commandsChannel: cfg.CommandsChannel,
		reconnectDelay:  cfg.ReconnectDelay,
		logger:          logger,
	}, nil
}

// Run subscribes to the events channel and posts decoded events to sink
// until ctx is cancelled.
func (r *RedisChannel) Run(ctx context.Context, sink ports.EventSink) error {
	for {
		if ctx.Err() != nil || r.closed.Load() {
			return nil
		}

		err := r.subscribe(ctx, sink)
		r.connected.Store(false)
		if ctx.Err() != nil || r.closed.Load() {
			return nil
		}
		r.logger.Warnw("Redis subscription lost", "channel", r.eventsChannel, "error", err)
		_ = sink.Post(ctx, domain.ConnectivityEvent{Online: false, Source: "redis", Reason: err.Error()})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.reconnectDelay):
		}
	}
}

func (r *RedisChannel) subscribe(ctx context.Context, sink ports.EventSink) error {
	pubsub := r.client.Subscribe(ctx, r.eventsChannel)
	defer pubsub.Close()

	// wait for the subscription confirmation before reporting online
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.eventsChannel, err)
	}
	r.connected.Store(true)
	r.logger.Infow("Subscribed to push events", "channel", r.eventsChannel)
	_ = sink.Post(ctx, domain.ConnectivityEvent{Online: true, Source: "redis"})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.dispatch(ctx, msg.Payload, sink)
		}
	}
}

func (r *RedisChannel) dispatch(ctx context.Context, payload string, sink ports.EventSink) {
	event, err := DecodeEvent([]byte(payload), time.Now())
	if err != nil {
		if errors.Is(err, ErrUnknownMessage) {
			r.logger.Debugw("Ignoring push message", "error", err)
		} else {
			r.logger.Warnw("Failed to decode push message", "error", err, "bytes", len(payload))
		}
		return
	}

	spanCtx, span := tracing.TracePushMessage(ctx, "inbound", string(event.Kind()))
	defer span.End()
	if err := sink.Post(spanCtx, event); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warnw("Dropping push event", "kind", event.Kind(), "error", err)
	}
}

// SendCommand publishes cmd on the commands channel.
func (r *RedisChannel) SendCommand(ctx context.Context, cmd domain.StreamCommand) error {
	ctx, span := tracing.TracePushMessage(ctx, "outbound", string(cmd.Type))
	defer span.End()
	span.SetAttributes(
		tracing.StreamCommandKey.String(string(cmd.Type)),
		tracing.CameraIDKey.String(string(cmd.CameraID)),
	)

	data, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Type, err)
	}
	if err := r.client.Publish(ctx, r.commandsChannel, data).Err(); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("publish %s: %w", cmd.Type, err)
	}
	r.logger.Debugw("Published stream command", "type", cmd.Type, "channel", r.commandsChannel)
	return nil
}

// Connected reports whether the subscription is currently established.
func (r *RedisChannel) Connected() bool {
	return r.connected.Load()
}

// Close marks the channel closed so Run does not resubscribe. The Redis
// client is owned by the caller.
func (r *RedisChannel) Close() error {
	r.closed.Store(true)
	r.connected.Store(false)
	return nil
}
