package cart

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage adalah penyimpanan durable per scope key. Scope tidak pernah
// di-garbage-collect oleh Store; eviksi diserahkan ke storage.
type Storage interface {
	Load(key string) ([]Item, error)
	Save(key string, items []Item) error
}

// MemoryStorage untuk test dan pemakaian in-process.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]Item
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]Item)}
}

func (m *MemoryStorage) Load(key string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.data[key]
	items := make([]Item, len(stored))
	copy(items, stored)
	return items, nil
}

func (m *MemoryStorage) Save(key string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]Item, len(items))
	copy(stored, items)
	m.data[key] = stored
	return nil
}

// FileStorage menyimpan tiap scope sebagai satu file JSON di satu direktori,
// padanan localStorage browser untuk client non-browser.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) Load(key string) ([]Item, error) {
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *FileStorage) Save(key string, items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(key), raw, 0o644)
}

// path meng-encode key supaya aman dijadikan nama file.
func (f *FileStorage) path(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(f.dir, name+".json")
}
