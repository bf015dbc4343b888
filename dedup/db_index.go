package dedup

import (
	"context"
	"fmt"

	"github.com/AumSahayata/bakpack/model"
	"github.com/AumSahayata/bakpack/store"
)

// DBReferenceIndex answers every lookup with an on-demand query against an
// open reference index database, rather than loading it into memory. The
// "reload" is simply always querying SQLite, which already does its own
// page caching.
type DBReferenceIndex struct {
	ctx context.Context
	s   *store.Store
}

// NewDBReferenceIndex wraps an already-open reference Store.
func NewDBReferenceIndex(ctx context.Context, s *store.Store) *DBReferenceIndex {
	return &DBReferenceIndex{ctx: ctx, s: s}
}

// LookupWithErr implements FallibleReferenceIndex.
func (d *DBReferenceIndex) LookupWithErr(path []byte) (model.FileRecord, bool, error) {
	rec, ok, err := d.s.FileByPath(d.ctx, path)
	if err != nil {
		return model.FileRecord{}, false, fmt.Errorf("dedup: looking up %q: %w", path, err)
	}
	return rec, ok, nil
}

// HashKnownWithErr implements FallibleReferenceIndex.
func (d *DBReferenceIndex) HashKnownWithErr(hash model.Hash) (bool, error) {
	ok, err := d.s.HashExists(d.ctx, hash)
	if err != nil {
		return false, fmt.Errorf("dedup: checking hash %s: %w", hash, err)
	}
	return ok, nil
}

// ChunksForHashWithErr implements FallibleReferenceIndex.
func (d *DBReferenceIndex) ChunksForHashWithErr(hash model.Hash) ([]model.Placement, error) {
	placements, err := d.s.ChunksForFileHash(d.ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("dedup: fetching chunks for %s: %w", hash, err)
	}
	return placements, nil
}

// These infallible methods exist only so *DBReferenceIndex satisfies
// ReferenceIndex structurally; Controller always detects the
// FallibleReferenceIndex methods above first and never calls these.
func (d *DBReferenceIndex) Lookup(path []byte) (model.FileRecord, bool)     { return model.FileRecord{}, false }
func (d *DBReferenceIndex) HashKnown(hash model.Hash) bool                 { return false }
func (d *DBReferenceIndex) ChunksForHash(hash model.Hash) []model.Placement { return nil }
