package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisBackend stores presence in Redis, one hash per crew.
type RedisBackend struct {
	client *redis.Client
}

// Redis key patterns:
// presence:crew:{crew_id}   HASH user_id -> JSON record
// presence:crews            SET<crew_id>  - crews with at least one record

const crewsKey = "presence:crews"

func crewKey(crewID string) string {
	return fmt.Sprintf("presence:crew:%s", crewID)
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBackend{client: client}, nil
}

type redisRecord struct {
	IsOnline   bool  `json:"is_online"`
	LastSeenAt int64 `json:"last_seen_at"`
}

func (r *RedisBackend) UpsertPresence(ctx context.Context, rec Record) error {
	data, err := json.Marshal(redisRecord{IsOnline: rec.IsOnline, LastSeenAt: rec.LastSeenAt.UnixMilli()})
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, crewKey(rec.CrewID), rec.UserID, data)
	pipe.SAdd(ctx, crewsKey, rec.CrewID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisBackend) ListPresence(ctx context.Context, crewID string) ([]Record, error) {
	fields, err := r.client.HGetAll(ctx, crewKey(crewID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(fields))
	for userID, raw := range fields {
		var rr redisRecord
		if err := json.Unmarshal([]byte(raw), &rr); err != nil {
			return nil, fmt.Errorf("decode presence of %s: %w", userID, err)
		}
		recs = append(recs, Record{
			UserID:     userID,
			CrewID:     crewID,
			IsOnline:   rr.IsOnline,
			LastSeenAt: time.UnixMilli(rr.LastSeenAt).UTC(),
		})
	}
	return recs, nil
}

func (r *RedisBackend) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
