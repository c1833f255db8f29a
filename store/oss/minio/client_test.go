package minio

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) *Client {
	endpoint := os.Getenv("STUDYCORE_TEST_MINIO")
	if endpoint == "" {
		t.Skip("STUDYCORE_TEST_MINIO not set")
	}
	c, err := New(context.Background(), &Config{
		Endpoint:        endpoint,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Bucket:          "studycore-test",
	}, nil)
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"完整配置", Config{Endpoint: "localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"}, false},
		{"缺少地址", Config{AccessKeyID: "a", SecretAccessKey: "b"}, true},
		{"缺少凭证", Config{Endpoint: "localhost:9000"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "studycore-offline", tt.cfg.Bucket)
		})
	}
}

func TestObjectRoundTrip(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "gen-a/one", []byte("1"), "text/plain"))
	require.NoError(t, c.Put(ctx, "gen-a/two", []byte("2"), "text/plain"))

	data, err := c.Get(ctx, "gen-a/one")
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	names, err := c.List(ctx, "gen-a/", true)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	require.NoError(t, c.RemovePrefix(ctx, "gen-a/"))
	_, err = c.Get(ctx, "gen-a/one")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}
