package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kochabx/studycore/store/redis"
)

// LegacySource is the flat string key-value store used before the KVS.
type LegacySource interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (string, error)
	Clear(ctx context.Context) error
}

// FileSource reads a flat JSON object from disk. String members are returned
// as is; any other member is returned as its JSON text.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("storage: parse legacy file %s: %w", s.Path, err)
	}
	return m, nil
}

func (s *FileSource) Keys(ctx context.Context) ([]string, error) {
	m, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileSource) Get(ctx context.Context, key string) (string, error) {
	m, err := s.read()
	if err != nil {
		return "", err
	}
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("storage: legacy key %q not found", key)
	}
	if len(raw) > 0 && raw[0] == '"' {
		return strconv.Unquote(string(raw))
	}
	return string(raw), nil
}

func (s *FileSource) Clear(ctx context.Context) error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RedisSource reads legacy entries from a single redis hash.
type RedisSource struct {
	client *redis.Client
	hash   string
}

func NewRedisSource(client *redis.Client, hash string) *RedisSource {
	return &RedisSource{client: client, hash: client.Key(hash)}
}

func (s *RedisSource) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.UniversalClient().HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisSource) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.UniversalClient().HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("storage: legacy key %q not found", key)
	}
	return v, err
}

func (s *RedisSource) Clear(ctx context.Context) error {
	return s.client.UniversalClient().Del(ctx, s.hash).Err()
}
