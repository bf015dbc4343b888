// Package dedup implements the two-level deduplication controller: a
// metadata tier that short-circuits unchanged files by path, size, and
// mtime, and a hash tier that falls back to a full content re-hash and
// compares it against the file hashes recorded by a reference run.
//
// ReferenceIndex splits the lookup surface into a no-error interface for
// backends guaranteed to succeed and an error-returning interface for
// backends that can fail (here, the SQLite-backed reference). Controller
// picks whichever the supplied ReferenceIndex implements.
package dedup

import (
	"github.com/AumSahayata/bakpack/model"
)

// ReferenceIndex is the minimal, infallible lookup surface a reference run
// must provide. Implementations backed by in-memory state are expected to
// satisfy this directly.
type ReferenceIndex interface {
	// Lookup returns the reference run's file-table row for the same path,
	// if one exists, regardless of whether size/mtime match.
	Lookup(path []byte) (model.FileRecord, bool)
	// HashKnown reports whether the reference run wrote any file with this
	// content hash.
	HashKnown(hash model.Hash) bool
	// ChunksForHash returns the reference run's chunk placements for a file
	// with this content hash, for copy-forwarding into a new run.
	ChunksForHash(hash model.Hash) []model.Placement
}

// FallibleReferenceIndex is the same lookup surface for a backend whose
// queries can fail, such as one reading straight from a database.
type FallibleReferenceIndex interface {
	LookupWithErr(path []byte) (model.FileRecord, bool, error)
	HashKnownWithErr(hash model.Hash) (bool, error)
	ChunksForHashWithErr(hash model.Hash) ([]model.Placement, error)
}

// lookup dispatches to the FallibleReferenceIndex methods if idx implements
// them, falling back to the infallible ReferenceIndex otherwise.
func lookup(idx ReferenceIndex, path []byte) (model.FileRecord, bool, error) {
	if fi, ok := idx.(FallibleReferenceIndex); ok {
		return fi.LookupWithErr(path)
	}
	rec, ok := idx.Lookup(path)
	return rec, ok, nil
}

func hashKnown(idx ReferenceIndex, hash model.Hash) (bool, error) {
	if fi, ok := idx.(FallibleReferenceIndex); ok {
		return fi.HashKnownWithErr(hash)
	}
	return idx.HashKnown(hash), nil
}

func chunksForHash(idx ReferenceIndex, hash model.Hash) ([]model.Placement, error) {
	if fi, ok := idx.(FallibleReferenceIndex); ok {
		return fi.ChunksForHashWithErr(hash)
	}
	return idx.ChunksForHash(hash), nil
}
