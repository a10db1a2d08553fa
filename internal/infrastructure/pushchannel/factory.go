package pushchannel

import (
	"fmt"

	"cctvdash/internal/core/ports"
	"cctvdash/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the configured push channel, falling back to the websocket
// transport when Redis cannot be reached.
type Factory struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewFactory creates a factory for the transport named in cfg.Push.
func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) *Factory {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// Create returns the push channel. The transport actually used is returned
// alongside it.
func (f *Factory) Create() (ports.PushChannel, string, error) {
	push := f.cfg.Push

	if push.Transport == "redis" {
		client, err := NewRedisClient(RedisConfig{
			Address:  f.cfg.Redis.Address,
			Password: f.cfg.Redis.Password,
			DB:       f.cfg.Redis.DB,
			PoolSize: f.cfg.Redis.PoolSize,
		}, f.logger)
		if err == nil {
			channel, err := NewRedisChannel(client, RedisConfig{
				EventsChannel:   push.EventsChannel,
				CommandsChannel: push.CommandsChannel,
				ReconnectDelay:  push.ReconnectDelay,
			}, f.logger.Named("redis"))
			if err != nil {
				_ = client.Close()
				return nil, "", err
			}
			f.redisClient = client
			f.logger.Infow("Using Redis push channel", "events", push.EventsChannel, "commands", push.CommandsChannel)
			return channel, "redis", nil
		}
		if push.URL == "" {
			return nil, "", fmt.Errorf("redis push channel unavailable and no websocket url configured: %w", err)
		}
		f.logger.Warnw("Failed to connect to Redis, falling back to websocket push channel", "error", err)
	}

	client, err := NewWebSocketClient(WebSocketConfig{
		URL:             push.URL,
		PingInterval:    push.PingInterval,
		PongTimeout:     push.PongTimeout,
		WriteTimeout:    push.WriteTimeout,
		ReconnectDelay:  push.ReconnectDelay,
		MaxMessageBytes: push.MaxMessageBytes,
	}, f.logger.Named("websocket"))
	if err != nil {
		return nil, "", err
	}
	f.logger.Infow("Using websocket push channel", "url", push.URL)
	return client, "websocket", nil
}

// RedisClient returns the client opened by Create, or nil.
func (f *Factory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes the Redis connection if one was opened.
func (f *Factory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
