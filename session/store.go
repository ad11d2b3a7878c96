package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user:"
	userSetPrefix    = "user-sessions:"
)

// Store persists users and sessions in redis. Session entries expire with
// their redis TTL; the expiry timestamp is checked again on lookup so a
// lagging TTL never extends a session.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// StoreOption customizes the store.
type StoreOption func(*Store)

// WithStoreLogger attaches a logger.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a redis backed store.
func NewStore(client *redis.Client, options ...StoreOption) *Store {
	ret := &Store{client: client, logger: zap.NewNop()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// FindOrCreateUser returns the account for a Touchstone username, creating
// it on first login.
func (s *Store) FindOrCreateUser(ctx context.Context, touchstoneUser string) (*User, error) {
	key := userKeyPrefix + touchstoneUser
	data, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		user := &User{}
		if err = json.Unmarshal([]byte(data), user); err != nil {
			return nil, err
		}
		return user, nil
	case errors.Is(err, redis.Nil):
	default:
		return nil, err
	}
	user := &User{
		ID:             uuid.New().String(),
		TouchstoneUser: touchstoneUser,
		CreatedAt:      time.Now().UTC(),
	}
	data2, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err = s.client.Set(ctx, key, data2, 0).Err(); err != nil {
		return nil, err
	}
	return user, nil
}

// RecordLogin stamps the user's last login time.
func (s *Store) RecordLogin(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.LastLoginAt = &now
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKeyPrefix+user.TouchstoneUser, data, 0).Err()
}

// Create stores a new session with the given lifetime.
func (s *Store) Create(ctx context.Context, userID, token, apiKeyEnc string, ttl time.Duration) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		APIKeyEnc:  apiKeyEnc,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err = s.client.Set(ctx, sessionKeyPrefix+token, data, ttl).Err(); err != nil {
		return nil, err
	}
	if err = s.client.SAdd(ctx, userSetPrefix+userID, token).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// FindByToken resolves a session token; absent or expired sessions return
// nil without an error.
func (s *Store) FindByToken(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := &Session{}
	if err = json.Unmarshal([]byte(data), sess); err != nil {
		return nil, err
	}
	if sess.Expired(time.Now().UTC()) {
		if _, derr := s.DeleteByToken(ctx, token); derr != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(derr))
		}
		return nil, nil
	}
	return sess, nil
}

// UpdateLastUsed stamps the session activity time without touching its TTL.
func (s *Store) UpdateLastUsed(ctx context.Context, token string) error {
	sess, err := s.FindByToken(ctx, token)
	if err != nil || sess == nil {
		return err
	}
	sess.LastUsedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+token, data, redis.KeepTTL).Err()
}

// DeleteByToken removes a session and its user index entry.
func (s *Store) DeleteByToken(ctx context.Context, token string) (bool, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sess := &Session{}
	if uerr := json.Unmarshal([]byte(data), sess); uerr == nil && sess.UserID != "" {
		if serr := s.client.SRem(ctx, userSetPrefix+sess.UserID, token).Err(); serr != nil {
			s.logger.Warn("failed to prune user session index", zap.Error(serr))
		}
	}
	removed, err := s.client.Del(ctx, sessionKeyPrefix+token).Result()
	return removed > 0, err
}

// FindByUser lists the live sessions of a user.
func (s *Store) FindByUser(ctx context.Context, userID string) ([]*Session, error) {
	tokens, err := s.client.SMembers(ctx, userSetPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	var ret []*Session
	for _, token := range tokens {
		sess, err := s.FindByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			ret = append(ret, sess)
		}
	}
	return ret, nil
}

// DeleteByUser removes every session of a user.
func (s *Store) DeleteByUser(ctx context.Context, userID string) (int, error) {
	tokens, err := s.client.SMembers(ctx, userSetPrefix+userID).Result()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, token := range tokens {
		ok, err := s.DeleteByToken(ctx, token)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	if err = s.client.Del(ctx, userSetPrefix+userID).Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// DeleteExpired prunes user index entries whose sessions already expired.
// Redis drops the session values itself when their TTL elapses.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	pruned := 0
	iter := s.client.Scan(ctx, 0, userSetPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		tokens, err := s.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return pruned, err
		}
		for _, token := range tokens {
			exists, err := s.client.Exists(ctx, sessionKeyPrefix+token).Result()
			if err != nil {
				return pruned, err
			}
			if exists == 0 {
				if err = s.client.SRem(ctx, setKey, token).Err(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, err
	}
	return pruned, nil
}

// NewClient connects to redis from a URL of the form redis://host:port/db
// or a bare host:port address.
func NewClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		options, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(options), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}
