package offline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kochabx/studycore/store/oss/minio"
)

// ObjectStore is the part of the minio client the generation store uses.
type ObjectStore interface {
	Put(ctx context.Context, object string, data []byte, contentType string) error
	Get(ctx context.Context, object string) ([]byte, error)
	List(ctx context.Context, prefix string, recursive bool) ([]string, error)
	RemovePrefix(ctx context.Context, prefix string) error
}

var _ ObjectStore = (*minio.Client)(nil)

// MinioStore persists generations as objects named <generation>/<encoded url>,
// so cached assets survive restarts and are shared between instances.
type MinioStore struct {
	objects ObjectStore
}

func NewMinioStore(objects ObjectStore) *MinioStore {
	return &MinioStore{objects: objects}
}

func objectName(gen, url string) string {
	return gen + "/" + base64.RawURLEncoding.EncodeToString([]byte(url))
}

func (s *MinioStore) Put(ctx context.Context, gen string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, objectName(gen, e.URL), data, "application/json")
}

func (s *MinioStore) Get(ctx context.Context, gen, url string) (*Entry, error) {
	data, err := s.objects.Get(ctx, objectName(gen, url))
	if err != nil {
		if errors.Is(err, minio.ErrObjectNotFound) {
			return nil, ErrNotCached
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("offline: decode %s: %w", url, err)
	}
	return &e, nil
}

func (s *MinioStore) Count(ctx context.Context, gen string) (int, error) {
	names, err := s.objects.List(ctx, gen+"/", true)
	return len(names), err
}

func (s *MinioStore) Delete(ctx context.Context, gen string) error {
	return s.objects.RemovePrefix(ctx, gen+"/")
}

func (s *MinioStore) List(ctx context.Context) ([]string, error) {
	names, err := s.objects.List(ctx, "", false)
	if err != nil {
		return nil, err
	}
	gens := make([]string, 0, len(names))
	for _, n := range names {
		if gen, ok := strings.CutSuffix(n, "/"); ok {
			gens = append(gens, gen)
		}
	}
	sort.Strings(gens)
	return gens, nil
}
