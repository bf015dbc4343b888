package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/AumSahayata/bakpack/model"
	"github.com/AumSahayata/bakpack/store"
)

// MemoryReferenceIndex loads an entire reference index database into
// memory once, at construction, and answers every lookup from that
// snapshot.
type MemoryReferenceIndex struct {
	mu         sync.RWMutex
	byPath     map[string]model.FileRecord
	byHash     map[model.Hash]bool
	chunksByFH map[model.Hash][]model.Placement
}

// LoadMemoryReferenceIndex reads every row of s into a MemoryReferenceIndex.
func LoadMemoryReferenceIndex(ctx context.Context, s *store.Store) (*MemoryReferenceIndex, error) {
	files, err := s.AllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("dedup: loading reference file table: %w", err)
	}
	chunks, err := s.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("dedup: loading reference chunk table: %w", err)
	}

	idx := &MemoryReferenceIndex{
		byPath:     make(map[string]model.FileRecord, len(files)),
		byHash:     make(map[model.Hash]bool, len(files)),
		chunksByFH: make(map[model.Hash][]model.Placement),
	}
	for _, rec := range files {
		idx.byPath[string(rec.Path)] = rec
		idx.byHash[rec.Hash] = true
	}
	for _, p := range chunks {
		idx.chunksByFH[p.FileHash] = append(idx.chunksByFH[p.FileHash], p)
	}
	return idx, nil
}

// Lookup implements ReferenceIndex.
func (m *MemoryReferenceIndex) Lookup(path []byte) (model.FileRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byPath[string(path)]
	return rec, ok
}

// HashKnown implements ReferenceIndex.
func (m *MemoryReferenceIndex) HashKnown(hash model.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byHash[hash]
}

// ChunksForHash implements ReferenceIndex.
func (m *MemoryReferenceIndex) ChunksForHash(hash model.Hash) []model.Placement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunksByFH[hash]
}
