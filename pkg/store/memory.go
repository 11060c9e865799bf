package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore はプロセス内で兄弟を保持するStore実装。
// 開発環境とテストで使用する。
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// Fetch はキーの兄弟を返す。
func (s *MemoryStore) Fetch(ctx context.Context, key string) ([]Sibling, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.data[key]
	siblings := make([]Sibling, 0, len(versions))
	for v, value := range versions {
		siblings = append(siblings, Sibling{Version: v, Value: slices.Clone(value)})
	}
	sortSiblings(siblings)
	return siblings, nil
}

// Put はsupersedesを削除してvalueを新しい兄弟として保存する。
func (s *MemoryStore) Put(ctx context.Context, key string, supersedes []string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.data[key]
	if !ok {
		versions = make(map[string][]byte)
		s.data[key] = versions
	}
	for _, v := range supersedes {
		delete(versions, v)
	}
	versions[uuid.NewString()] = slices.Clone(value)
	return nil
}
