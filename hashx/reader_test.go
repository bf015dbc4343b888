package hashx

import (
	"bytes"
	"io"
	"testing"

	"github.com/zeebo/blake3"
)

func TestReader_MatchesDirectHash(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")

	hr, err := NewReader(bytes.NewReader(data), Blake3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := io.ReadAll(hr)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read bytes mismatch")
	}

	want := blake3.Sum256(data)
	if hr.Finalize() != Truncate(want[:]) {
		t.Errorf("hash mismatch")
	}
}

// TestReader_IntermediateFinalize verifies that Finalize can be called
// mid-stream to get a chunk-hash without disturbing accumulation toward a
// later, longer file-hash.
func TestReader_IntermediateFinalize(t *testing.T) {
	first := []byte("hello, ")
	second := []byte("world!")

	hr, err := NewReader(bytes.NewReader(append(append([]byte{}, first...), second...)), Blake3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, len(first))
	if _, err := io.ReadFull(hr, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFirst := blake3.Sum256(first)
	if hr.Finalize() != Truncate(wantFirst[:]) {
		t.Errorf("intermediate hash mismatch")
	}

	rest, err := io.ReadAll(hr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(rest, second) {
		t.Fatalf("remaining bytes mismatch")
	}

	wantAll := blake3.Sum256(append(append([]byte{}, first...), second...))
	if hr.Finalize() != Truncate(wantAll[:]) {
		t.Errorf("final hash mismatch")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestReader_PropagatesError(t *testing.T) {
	hr, err := NewReader(errReader{}, Blake3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = hr.Read(make([]byte, 8))
	if err != io.ErrClosedPipe {
		t.Errorf("expected propagated error, got %v", err)
	}
}
