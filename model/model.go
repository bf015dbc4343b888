// Package model defines the on-disk data shapes shared by every component
// of the backup engine: the scanned file entry, the truncated content hash,
// and the chunk placement record that ties a hash to a byte range inside a
// bak file.
package model

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length, in bytes, of a truncated BLAKE3 digest as stored
// on disk. Half of a 32-byte hash is enough for this format's collision
// budget; the full digest is never persisted.
const HashSize = 16

// Hash is a 16-byte prefix of a 256-bit BLAKE3 digest.
type Hash [HashSize]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// FileEntry is one regular file observed by the scanner. It is immutable
// for the lifetime of a run.
type FileEntry struct {
	// Path holds the file's path relative to the source directory, as raw
	// bytes: source paths are not guaranteed to be valid text on POSIX.
	Path []byte
	// Size is the file's length in bytes.
	Size int64
	// ModTime is the file's modification time as nanoseconds since the
	// Unix epoch (seconds*1e9 + nanos), collapsed to a single scalar.
	ModTime int64
}

// PathString returns Path as a Go string, for logging and for joining onto
// the source directory. The conversion copies the bytes unchanged (no UTF-8
// decoding or replacement), so non-UTF-8 paths survive it intact; the
// on-disk record stores Path itself.
func (e FileEntry) PathString() string {
	return string(e.Path)
}

// FileRecord is one row of the file table: (path, size, mtime, file-hash).
// Unique by Path.
type FileRecord struct {
	Path    []byte
	Size    int64
	ModTime int64
	Hash    Hash
}

// Placement is one row of the chunk table: which file-hash a chunk belongs
// to, the chunk's own hash, and where its bytes live inside a numbered bak
// file.
type Placement struct {
	FileHash  Hash
	ChunkHash Hash
	BakIndex  int
	Offset    int64
	Size      int64
}

// String implements fmt.Stringer for diagnostic logging.
func (p Placement) String() string {
	return fmt.Sprintf("placement{file=%s chunk=%s bak=%d off=%d size=%d}",
		p.FileHash, p.ChunkHash, p.BakIndex, p.Offset, p.Size)
}
