package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dropinbox/internal/domain"
)

// Store keeps the persisted session and the forwarding service's rate
// limit counters in Redis.
type Store struct {
	client *redis.Client
	prefix string
}

func New(redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	if prefix == "" {
		prefix = "dropinbox"
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionKeys() (id, email, expiration string) {
	return s.prefix + ":sessionID", s.prefix + ":email", s.prefix + ":expiration"
}

// Save writes the three session fields in one MULTI/EXEC so a reader never
// observes a partial session.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	idKey, emailKey, expKey := s.sessionKeys()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, idKey, sess.SessionID, 0)
		pipe.Set(ctx, emailKey, sess.Address, 0)
		pipe.Set(ctx, expKey, strconv.FormatInt(sess.ExpiresAt, 10), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns nil when any of the three fields is missing or the expiry
// is not a decimal number.
func (s *Store) Load(ctx context.Context) (*domain.Session, error) {
	idKey, emailKey, expKey := s.sessionKeys()

	pipe := s.client.Pipeline()
	idCmd := pipe.Get(ctx, idKey)
	emailCmd := pipe.Get(ctx, emailKey)
	expCmd := pipe.Get(ctx, expKey)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load session: %w", err)
	}

	id, _ := idCmd.Result()
	email, _ := emailCmd.Result()
	exp, _ := expCmd.Result()

	expiresAt, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, nil
	}

	sess := &domain.Session{SessionID: id, Address: email, ExpiresAt: expiresAt}
	if !sess.Complete() {
		return nil, nil
	}
	return sess, nil
}

func (s *Store) Clear(ctx context.Context) error {
	idKey, emailKey, expKey := s.sessionKeys()
	if err := s.client.Del(ctx, idKey, emailKey, expKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// RateLimit counts one hit for ip/action and reports whether the caller is
// still within limit. The counter expires window after the latest hit.
func (s *Store) RateLimit(ctx context.Context, ip string, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:ratelimit:%s:%s", s.prefix, action, ip)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	return incr.Val() <= int64(limit), nil
}
