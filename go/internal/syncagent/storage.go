package syncagent

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Storage is the key/value area every tab of one profile can see.
// Writes are last-writer-wins with no compare-and-swap.
type Storage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

// MemoryStorage is a Storage shared by agents in one process
type MemoryStorage struct {
	items *xsync.MapOf[string, []byte]
}

// NewMemoryStorage creates an empty shared storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: xsync.NewMapOf[string, []byte]()}
}

func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	v, ok := s.items.Load(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (s *MemoryStorage) Set(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.items.Store(key, v)
}

func (s *MemoryStorage) Delete(key string) {
	s.items.Delete(key)
}
