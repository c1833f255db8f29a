package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kochabx/studycore/store/redis"
)

type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Session is the persisted token state. ExpiresAt and CreatedAt are epoch ms.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
	User         User   `json:"user"`
	CreatedAt    int64  `json:"createdAt"`
}

func (s *Session) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// SessionView is a session as seen at a point in time.
type SessionView struct {
	Session
	ExpiresIn    time.Duration `json:"expiresIn"`
	NeedsRefresh bool          `json:"needsRefresh"`
}

// SessionStore persists the single session of this installation.
type SessionStore interface {
	// Load returns nil without error when there is no session.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context) error
}

// KV is the key-value store the default session store writes to.
type KV interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

type KVSessionStore struct {
	kv  KV
	key string
}

func NewKVSessionStore(kv KV, key string) *KVSessionStore {
	if key == "" {
		key = "auth_session"
	}
	return &KVSessionStore{kv: kv, key: key}
}

func (s *KVSessionStore) Load(ctx context.Context) (*Session, error) {
	var sess Session
	ok, err := s.kv.Get(ctx, s.key, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *KVSessionStore) Save(ctx context.Context, sess *Session) error {
	return s.kv.Set(ctx, s.key, sess)
}

func (s *KVSessionStore) Delete(ctx context.Context) error {
	return s.kv.Remove(ctx, s.key)
}

// RedisSessionStore keeps the session in redis so several processes of the
// same installation share it.
type RedisSessionStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, key string, ttl time.Duration) *RedisSessionStore {
	if key == "" {
		key = "auth_session"
	}
	return &RedisSessionStore{client: client, key: client.Key(key), ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context) (*Session, error) {
	data, err := s.client.UniversalClient().Get(ctx, s.key).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.UniversalClient().Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context) error {
	return s.client.UniversalClient().Del(ctx, s.key).Err()
}
