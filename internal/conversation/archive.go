package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Archive persists turns outside the process. It is write-mostly; the
// in-memory State stays authoritative for the running connection.
type Archive interface {
	Save(ctx context.Context, conversationID string, turn Turn) error
	Load(ctx context.Context, conversationID string) ([]Turn, error)
}

// NopArchive keeps nothing
type NopArchive struct{}

func (NopArchive) Save(context.Context, string, Turn) error     { return nil }
func (NopArchive) Load(context.Context, string) ([]Turn, error) { return nil, nil }

// RedisArchiveConfig describes the Redis connection for transcripts
type RedisArchiveConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisArchive stores each conversation as a Redis list of JSON turns
type RedisArchive struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisArchive connects and pings Redis
func NewRedisArchive(ctx context.Context, cfg RedisArchiveConfig) (*RedisArchive, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	return NewRedisArchiveWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisArchiveWithClient wraps an existing client
func NewRedisArchiveWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisArchive {
	if prefix == "" {
		prefix = "tradeagent:conversation:"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisArchive{client: client, prefix: prefix, ttl: ttl}
}

func (a *RedisArchive) key(id string) string {
	return a.prefix + id
}

// Save appends the turn and refreshes the expiry
func (a *RedisArchive) Save(ctx context.Context, conversationID string, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return errors.Wrap(err, "encode turn")
	}

	key := a.key(conversationID)
	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, a.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "archive turn")
	}
	return nil
}

// Load returns the archived turns in order
func (a *RedisArchive) Load(ctx context.Context, conversationID string) ([]Turn, error) {
	values, err := a.client.LRange(ctx, a.key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}

	turns := make([]Turn, 0, len(values))
	for _, v := range values {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, errors.Wrap(err, "decode turn")
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Close releases the Redis connection
func (a *RedisArchive) Close() error {
	return a.client.Close()
}
