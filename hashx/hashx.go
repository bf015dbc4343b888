// Package hashx provides the content-hashing primitives the backup engine
// is built on: a factory for the hash algorithm (BLAKE3 in the reference
// configuration) and a read adapter that accumulates a running digest over
// every byte it sees.
package hashx

import (
	"hash"

	"github.com/zeebo/blake3"

	"github.com/AumSahayata/bakpack/model"
)

// Algo names a hash algorithm usable by New.
type Algo string

// Blake3 is the only algorithm the on-disk format supports. The factory
// keeps a pluggable-by-name shape so a future algorithm can be added
// without touching call sites, but this implementation only wires blake3
// because the format's truncation (model.HashSize) is defined in terms of
// it.
const Blake3 Algo = "blake3"

// New creates a fresh hash.Hash for the named algorithm.
func New(algo Algo) (hash.Hash, error) {
	switch algo {
	case Blake3, "":
		return blake3.New(), nil
	default:
		return nil, &UnsupportedAlgoError{Algo: algo}
	}
}

// UnsupportedAlgoError is returned by New for an unrecognized algorithm.
type UnsupportedAlgoError struct {
	Algo Algo
}

func (e *UnsupportedAlgoError) Error() string {
	return "hashx: unsupported hash algorithm: " + string(e.Algo)
}

// Truncate takes the first model.HashSize bytes of a full digest, as the
// on-disk format requires. It panics if sum is shorter than model.HashSize;
// every algorithm New can construct produces longer digests.
func Truncate(sum []byte) model.Hash {
	var h model.Hash
	copy(h[:], sum[:model.HashSize])
	return h
}
