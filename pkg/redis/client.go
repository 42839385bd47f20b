package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itamhq/teambot/pkg/config"
	"github.com/redis/go-redis/v9"
)

// ErrNoGroup reports that a stream read failed because the stream or
// consumer group does not exist yet. go-redis surfaces this server
// reply only as error text, so the substring match lives here and
// nowhere else.
var ErrNoGroup = errors.New("stream or consumer group does not exist")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	XGroupCreate(context.Context, string, string, string) *redis.StatusCmd
	XReadGroup(context.Context, *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(context.Context, string, string, ...string) *redis.IntCmd
}

// Client wraps the redis connection helpers needed by the bot: the
// token key/value surface and the notification stream surface.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Entry is one record read from a stream on behalf of a consumer group.
type Entry struct {
	ID     string
	Values map[string]string
}

// New bootstraps a Redis client with pooling/timeouts and verifies
// connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

// CreateGroup creates the consumer group at the start of the stream.
// A group that already exists is success: creation is idempotent and
// races with other bootstrap attempts are expected.
func (c *Client) CreateGroup(ctx context.Context, stream, group string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	err := c.store.XGroupCreate(ctx, stream, group, "0").Err()
	if err == nil || isBusyGroup(err) {
		return nil
	}
	return err
}

// ReadGroup claims up to count unread entries for the consumer. A read
// with no new entries returns an empty slice, not an error. A missing
// stream or group returns ErrNoGroup so the caller can recover.
func (c *Client) ReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]Entry, error) {
	if c.store == nil {
		return nil, errors.New("redis client not initialized")
	}
	res, err := c.store.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if isNoGroup(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoGroup, err)
		}
		return nil, err
	}

	var entries []Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			entries = append(entries, Entry{ID: msg.ID, Values: stringValues(msg.Values)})
		}
	}
	return entries, nil
}

// Ack marks entries as processed for the consumer group.
func (c *Client) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.XAck(ctx, stream, group, ids...).Err()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// IsNil reports whether the error is a cache miss.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func isNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func stringValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
