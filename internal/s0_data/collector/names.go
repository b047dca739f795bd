package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wonny/quantscan/pkg/fileutil"
	"github.com/wonny/quantscan/pkg/redis"
)

// NameStore persists the ticker → display name map shared between processes.
// 최선 노력(best effort): 마지막 쓰기가 이김
type NameStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, names map[string]string) error
}

// MemoryNameStore keeps names in process (tests, synthetic mode)
type MemoryNameStore struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewMemoryNameStore creates an empty in-memory store
func NewMemoryNameStore() *MemoryNameStore {
	return &MemoryNameStore{names: make(map[string]string)}
}

func (m *MemoryNameStore) Load(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryNameStore) Save(_ context.Context, names map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range names {
		m.names[k] = v
	}
	return nil
}

// ErrCorruptNames marks a names file that is not a JSON object
var ErrCorruptNames = errors.New("corrupt names file")

// FileNameStore keeps names in a JSON file.
// 임시 파일에 쓴 뒤 rename으로 교체 (읽는 쪽이 반쯤 쓴 파일을 보지 않음)
type FileNameStore struct {
	path string
}

// NewFileNameStore creates a store backed by path
func NewFileNameStore(path string) *FileNameStore {
	return &FileNameStore{path: path}
}

// Load reads the file; a missing file is an empty map
func (f *FileNameStore) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	names := make(map[string]string)
	if len(data) == 0 {
		return names, nil
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptNames, err)
	}
	return names, nil
}

// Save merges names into the file content and replaces it atomically.
// 손상된 파일은 <path>.corrupt로 옮겨 보존한 뒤 새로 씀; 그 외 읽기 오류는 덮어쓰지 않음
func (f *FileNameStore) Save(ctx context.Context, names map[string]string) error {
	merged, err := f.Load(ctx)
	switch {
	case errors.Is(err, ErrCorruptNames):
		if rerr := os.Rename(f.path, f.path+".corrupt"); rerr != nil {
			return fmt.Errorf("preserve corrupt names file: %w", rerr)
		}
		merged = make(map[string]string, len(names))
	case err != nil:
		return err
	}
	for k, v := range names {
		merged[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encode names: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create names dir: %w", err)
		}
	}
	return fileutil.WriteAtomic(f.path, data)
}

// RedisNameStore keeps names in the shared hash <prefix>:names
type RedisNameStore struct {
	cache *redis.Cache
}

// NewRedisNameStore creates a store on an enabled Redis cache
func NewRedisNameStore(cache *redis.Cache) *RedisNameStore {
	return &RedisNameStore{cache: cache}
}

func (r *RedisNameStore) Load(ctx context.Context) (map[string]string, error) {
	names, err := r.cache.HashGetAll(ctx, "names")
	if err != nil {
		return nil, fmt.Errorf("load names hash: %w", err)
	}
	return names, nil
}

func (r *RedisNameStore) Save(ctx context.Context, names map[string]string) error {
	if err := r.cache.HashSet(ctx, "names", names); err != nil {
		return fmt.Errorf("save names hash: %w", err)
	}
	return nil
}
