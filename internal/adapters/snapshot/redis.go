package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

// RedisSink mirrors snapshots into one sorted set per identity plus a meta
// hash holding the ordered entries. An index set tracks the written keys so
// the next export can drop boards that disappeared.
type RedisSink struct {
	client redis.UniversalClient
	prefix string
	owned  bool
	logger logger.Logger
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.UniversalClient, opts ...Option) *RedisSink {
	o := buildOptions(opts)
	return &RedisSink{client: client, prefix: o.keyPrefix, logger: o.logger}
}

// OpenRedis connects to a redis server and verifies it.
func OpenRedis(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s := NewRedisSink(client, opts...)
	s.owned = true
	return s, nil
}

// Name implements service.SnapshotSink.
func (s *RedisSink) Name() string { return "redis" }

// BoardKey is the sorted set holding athlete scores for an identity.
func (s *RedisSink) BoardKey(id types.Identity) string {
	return fmt.Sprintf("%s:leaderboard:%s", s.prefix, id.Key())
}

// MetaKey is the hash describing an identity's snapshot.
func (s *RedisSink) MetaKey(id types.Identity) string {
	return fmt.Sprintf("%s:leaderboard:%s:meta", s.prefix, id.Key())
}

// IndexKey is the set of identity keys written by the last export.
func (s *RedisSink) IndexKey() string {
	return s.prefix + ":leaderboards"
}

// Export implements service.SnapshotSink.
func (s *RedisSink) Export(ctx context.Context, snapshots []types.Leaderboard) error {
	previous, err := s.client.SMembers(ctx, s.IndexKey()).Result()
	if err != nil {
		return fmt.Errorf("reading snapshot index: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range previous {
		pipe.Del(ctx,
			fmt.Sprintf("%s:leaderboard:%s", s.prefix, key),
			fmt.Sprintf("%s:leaderboard:%s:meta", s.prefix, key),
		)
	}
	pipe.Del(ctx, s.IndexKey())

	for _, lb := range snapshots {
		meta, err := metaFields(lb)
		if err != nil {
			pipe.Discard()
			return err
		}
		if len(lb.Entries) > 0 {
			members := make([]redis.Z, 0, len(lb.Entries))
			for _, e := range lb.Entries {
				members = append(members, redis.Z{Score: e.BestScoreNorm, Member: e.AthleteID})
			}
			pipe.ZAdd(ctx, s.BoardKey(lb.Identity), members...)
		}
		pipe.HSet(ctx, s.MetaKey(lb.Identity), meta)
		pipe.SAdd(ctx, s.IndexKey(), lb.Identity.Key())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing snapshots to redis: %w", err)
	}
	s.logger.Debug(ctx, "snapshots exported",
		logger.String("sink", s.Name()),
		logger.Int("snapshots", len(snapshots)),
		logger.Int("removed", len(previous)),
	)
	return nil
}

// Close closes the client when the sink opened it.
func (s *RedisSink) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func metaFields(lb types.Leaderboard) (map[string]any, error) {
	entries, err := json.Marshal(lb.Entries)
	if err != nil {
		return nil, fmt.Errorf("encoding entries of %s: %w", lb.Identity.Key(), err)
	}
	return map[string]any{
		"workoutId": lb.Identity.WorkoutID,
		"scope":     string(lb.Identity.Scope),
		"gymId":     lb.Identity.GymID,
		"period":    string(lb.Identity.Period),
		"scaleCode": string(lb.Identity.Scale),
		"updatedAt": lb.UpdatedAt.Format(time.RFC3339Nano),
		"size":      len(lb.Entries),
		"entries":   string(entries),
	}, nil
}
