package hashx

import (
	"hash"
	"io"

	"github.com/AumSahayata/bakpack/model"
)

// Reader wraps an io.Reader and feeds every successfully read byte into a
// running hash. Finalize is pure: it does not consume the wrapper, so the
// same Reader can be finalized mid-stream to obtain an intermediate digest
// (used for a chunk-hash) while continuing to accumulate toward a longer
// digest (used for the enclosing file-hash).
//
// Seeking the inner reader out from under a Reader is not supported; the
// running hash becomes undefined if the inner reader's position moves
// without a matching Read call through this wrapper.
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader wraps r, hashing with algo.
func NewReader(r io.Reader, algo Algo) (*Reader, error) {
	h, err := New(algo)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, h: h}, nil
}

// Read implements io.Reader. Every byte returned is also fed into the
// running hash before Read returns.
func (hr *Reader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
	}
	return n, err
}

// Finalize returns the truncated digest of everything read so far. It may
// be called any number of times; it does not reset or otherwise disturb the
// running hash.
func (hr *Reader) Finalize() model.Hash {
	return Truncate(hr.h.Sum(nil))
}
