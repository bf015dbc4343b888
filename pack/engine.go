package pack

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/AumSahayata/bakpack/hashx"
	"github.com/AumSahayata/bakpack/model"
)

// Engine splits file contents into fixed-size chunks and hands each one to
// a Writer. It always cuts at ChunkSize: content-defined chunking is
// explicitly out of scope for this format.
type Engine struct {
	ChunkSize int64
}

// NewEngine returns an Engine that cuts chunks of chunkSize bytes (the
// final chunk of a file may be shorter).
func NewEngine(chunkSize int64) *Engine {
	return &Engine{ChunkSize: chunkSize}
}

// PackFile streams the file at path (known to be fileSize bytes long),
// splitting it into fixed-size chunks, writing each through w, and
// returning the file's content hash along with one Placement per chunk.
// Placements are returned with FileHash already populated.
//
// The file is opened once and wrapped in a single hashx.Reader for the
// file-level digest; each chunk's bounded sub-range is itself wrapped in a
// fresh hashx.Reader and copied through into the chunk buffer, so every
// byte is hashed exactly once at each of the two levels as it streams past.
func (e *Engine) PackFile(path string, fileSize int64, w *Writer) (model.Hash, []model.Placement, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Hash{}, nil, fmt.Errorf("pack: opening %s: %w", path, err)
	}
	defer f.Close()

	fileHR, err := hashx.NewReader(f, hashx.Blake3)
	if err != nil {
		return model.Hash{}, nil, err
	}

	var placements []model.Placement
	remaining := fileSize

	for remaining > 0 {
		n := e.ChunkSize
		if remaining < n {
			n = remaining
		}

		chunkHR, err := hashx.NewReader(io.LimitReader(fileHR, n), hashx.Blake3)
		if err != nil {
			return model.Hash{}, nil, err
		}

		var buf bytes.Buffer
		buf.Grow(int(n))
		if _, err := io.Copy(&buf, chunkHR); err != nil {
			return model.Hash{}, nil, fmt.Errorf("pack: reading %s: %w", path, err)
		}
		if int64(buf.Len()) != n {
			return model.Hash{}, nil, fmt.Errorf("pack: reading %s: got %d bytes, expected %d (file changed size mid-run?)", path, buf.Len(), n)
		}
		chunkHash := chunkHR.Finalize()

		bakIdx, offset, err := w.WriteChunk(buf.Bytes())
		if err != nil {
			return model.Hash{}, nil, err
		}

		placements = append(placements, model.Placement{
			ChunkHash: chunkHash,
			BakIndex:  bakIdx,
			Offset:    offset,
			Size:      n,
		})

		remaining -= n
	}

	fileHash := fileHR.Finalize()
	for i := range placements {
		placements[i].FileHash = fileHash
	}

	return fileHash, placements, nil
}
