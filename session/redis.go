package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRetention keeps terminal records around past their deadline so
// late arrivals resolve to an explicit state instead of a miss.
const defaultRetention = time.Hour

const deleteRecordScript = `
redis.call('SREM', KEYS[2], ARGV[1])
return redis.call('DEL', KEYS[1])
`

var deleteRecordLua = redis.NewScript(deleteRecordScript)

// RedisRepository is a Redis-backed [Repository]. Records are stored as
// JSON blobs with a TTL of deadline plus a retention grace, and indexed
// per client for bulk revocation.
type RedisRepository struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisRepository returns a repository on the given client. prefix
// namespaces the keys and defaults to "rauth". retention extends record
// lifetime past the session deadline and defaults to one hour.
func NewRedisRepository(client redis.UniversalClient, prefix string, retention time.Duration) *RedisRepository {
	if prefix == "" {
		prefix = "rauth"
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisRepository{redis: client, prefix: prefix, retention: retention}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + ":ses:" + id
}

func (r *RedisRepository) clientKey(clientID string) string {
	return r.prefix + ":sci:" + clientID
}

func (r *RedisRepository) Insert(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(sess.Deadline) + r.retention
	if ttl <= 0 {
		return errors.New("session deadline is in the past")
	}

	stored, err := r.redis.SetNX(ctx, r.key(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !stored {
		return ErrAlreadyExists
	}

	if err := r.redis.SAdd(ctx, r.clientKey(sess.ClientID), sess.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", id, err)
	}
	return &sess, nil
}

func (r *RedisRepository) Update(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	updated, err := r.redis.SetXX(ctx, r.key(sess.ID), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	sess, err := r.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []string{r.key(id), r.clientKey(sess.ClientID)}
	if err := deleteRecordLua.Run(ctx, r.redis, keys, id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepository) DeleteByClient(ctx context.Context, clientID string) (int, error) {
	indexKey := r.clientKey(clientID)

	ids, err := r.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, r.key(id))
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return len(ids), nil
}
