// Package benchmark holds end-to-end tests exercising the full backup
// pipeline: scanning, deduplication, chunking, bin-packing, and index
// writing, wired together the way cmd/bakpack and internal/runner wire
// them. These pin down the boundary scenarios the bak-file packing and
// differential dedup rules were designed against.
package benchmark

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AumSahayata/bakpack/internal/config"
	"github.com/AumSahayata/bakpack/internal/logging"
	"github.com/AumSahayata/bakpack/internal/runner"
	"github.com/AumSahayata/bakpack/internal/testutil"
	"github.com/AumSahayata/bakpack/pack"
	"github.com/AumSahayata/bakpack/store"
)

// S1: two small files packed with chunk_size=4, backup_size=10. bak0 takes
// "hell"+"o" from a (5 bytes) then "worl" from b, landing at 9 of 10
// bytes; the next 3-byte chunk of b would push bak0 to 12 and rotates
// instead.
func TestPipeline_S1_RotationPacksTightly(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"a": "hello",
		"b": "world!!",
	})

	w := pack.NewWriter(dir, 10, nil)
	e := pack.NewEngine(4)

	if _, _, err := e.PackFile(filepath.Join(dir, "a"), 5, w); err != nil {
		t.Fatalf("pack a: %v", err)
	}
	if _, _, err := e.PackFile(filepath.Join(dir, "b"), 7, w); err != nil {
		t.Fatalf("pack b: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bak0 := testutil.BakBytes(t, dir, 0)
	bak1 := testutil.BakBytes(t, dir, 1)

	if !bytes.Equal(bak0, []byte("helloworl")) {
		t.Fatalf("bak0 = %q, want %q", bak0, "helloworl")
	}
	if !bytes.Equal(bak1, []byte("d!!")) {
		t.Fatalf("bak1 = %q, want %q", bak1, "d!!")
	}
}

// S3: chunk_size=backup_size=8 with a 20-byte file splits into [8,8,4] and
// each chunk lands in its own bak, since any addition to a full bak would
// overflow it.
func TestPipeline_S3_OneChunkPerBakWhenFull(t *testing.T) {
	dir := t.TempDir()
	content := "12345678901234567890" // 20 bytes
	testutil.WriteTree(t, dir, map[string]string{"f": content})

	w := pack.NewWriter(dir, 8, nil)
	e := pack.NewEngine(8)

	_, placements, err := e.PackFile(filepath.Join(dir, "f"), int64(len(content)), w)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(placements) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(placements))
	}
	wantSizes := []int64{8, 8, 4}
	for i, p := range placements {
		if p.Size != wantSizes[i] {
			t.Errorf("chunk %d size = %d, want %d", i, p.Size, wantSizes[i])
		}
		if p.BakIndex != i {
			t.Errorf("chunk %d landed in bak%d, want bak%d", i, p.BakIndex, i)
		}
	}

	for i, want := range []int64{8, 8, 4} {
		got := testutil.BakBytes(t, dir, i)
		if int64(len(got)) != want {
			t.Errorf("bak%d size = %d, want %d", i, len(got), want)
		}
	}
}

// S4: a differential run against a renamed-but-identical file finds no
// match by path (tier 1) but matches by content hash (tier 2), so it is
// copied forward and contributes zero new chunk rows.
func TestPipeline_S4_RenameIsCopiedForward(t *testing.T) {
	ctx := context.Background()
	log := logging.Discard()

	srcDir := t.TempDir()
	testutil.WriteTree(t, srcDir, map[string]string{"a": "identical content, renamed later"})

	refOut := filepath.Join(t.TempDir(), "ref")
	refCfg, err := config.New(srcDir, refOut, "", "64", "4096", nil)
	if err != nil {
		t.Fatalf("ref config: %v", err)
	}
	if _, err := runner.Run(ctx, refCfg, log); err != nil {
		t.Fatalf("reference run: %v", err)
	}

	// Rename on disk; os.Rename does not touch mtime.
	if err := os.Rename(filepath.Join(srcDir, "a"), filepath.Join(srcDir, "a2")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	diffOut := filepath.Join(t.TempDir(), "diff")
	diffCfg, err := config.New(srcDir, diffOut, filepath.Join(refOut, runner.IndexFileName), "64", "4096", nil)
	if err != nil {
		t.Fatalf("diff config: %v", err)
	}
	stats, err := runner.Run(ctx, diffCfg, log)
	if err != nil {
		t.Fatalf("differential run: %v", err)
	}

	if stats.FilesWritten != 0 {
		t.Errorf("expected no files written, got %d", stats.FilesWritten)
	}
	if stats.FilesCopied != 1 {
		t.Errorf("expected 1 file copied forward, got %d", stats.FilesCopied)
	}
	if stats.ChunksWritten != 0 {
		t.Errorf("expected no new chunk rows, got %d", stats.ChunksWritten)
	}

	s, err := store.Open(filepath.Join(diffOut, runner.IndexFileName))
	if err != nil {
		t.Fatalf("opening differential index: %v", err)
	}
	defer s.Close()

	rec, ok, err := s.FileByPath(ctx, []byte("a2"))
	if err != nil || !ok {
		t.Fatalf("expected a2 present in differential index, err=%v ok=%v", err, ok)
	}
	placements, err := s.ChunksForFileHash(ctx, rec.Hash)
	if err != nil {
		t.Fatalf("chunks for a2: %v", err)
	}
	if len(placements) == 0 {
		t.Fatalf("expected copied-forward placements to be present")
	}
}

// S5: an edited file misses both dedup tiers and is packed as new content
// with a fresh file hash.
func TestPipeline_S5_EditedFileIsWritten(t *testing.T) {
	ctx := context.Background()
	log := logging.Discard()

	srcDir := t.TempDir()
	testutil.WriteTree(t, srcDir, map[string]string{"a": "version one"})

	refOut := filepath.Join(t.TempDir(), "ref")
	refCfg, err := config.New(srcDir, refOut, "", "64", "4096", nil)
	if err != nil {
		t.Fatalf("ref config: %v", err)
	}
	if _, err := runner.Run(ctx, refCfg, log); err != nil {
		t.Fatalf("reference run: %v", err)
	}

	// Edit in place; ensure the mtime actually advances on coarse filesystems.
	time.Sleep(10 * time.Millisecond)
	testutil.WriteTree(t, srcDir, map[string]string{"a": "version two, edited"})

	diffOut := filepath.Join(t.TempDir(), "diff")
	diffCfg, err := config.New(srcDir, diffOut, filepath.Join(refOut, runner.IndexFileName), "64", "4096", nil)
	if err != nil {
		t.Fatalf("diff config: %v", err)
	}
	stats, err := runner.Run(ctx, diffCfg, log)
	if err != nil {
		t.Fatalf("differential run: %v", err)
	}

	if stats.FilesWritten != 1 {
		t.Errorf("expected 1 file written, got %d", stats.FilesWritten)
	}
	if stats.FilesCopied != 0 {
		t.Errorf("expected no files copied forward, got %d", stats.FilesCopied)
	}
}

// S6: piping bak payloads through the identity filter "cat" produces
// byte-identical bak files to an unfiltered run.
func TestPipeline_S6_IdentityFilterIsByteIdentical(t *testing.T) {
	content := "filtered and unfiltered should match exactly"

	unfiltered := t.TempDir()
	testutil.WriteTree(t, unfiltered, map[string]string{"f": content})
	w1 := pack.NewWriter(unfiltered, 1024, nil)
	e := pack.NewEngine(6)
	if _, _, err := e.PackFile(filepath.Join(unfiltered, "f"), int64(len(content)), w1); err != nil {
		t.Fatalf("pack unfiltered: %v", err)
	}
	if err := w1.Close(); err != nil {
		t.Fatalf("close unfiltered: %v", err)
	}

	filtered := t.TempDir()
	testutil.WriteTree(t, filtered, map[string]string{"f": content})
	w2 := pack.NewWriter(filtered, 1024, []string{"cat"})
	if _, _, err := e.PackFile(filepath.Join(filtered, "f"), int64(len(content)), w2); err != nil {
		t.Fatalf("pack filtered: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close filtered: %v", err)
	}

	a := testutil.BakBytes(t, unfiltered, 0)
	b := testutil.BakBytes(t, filtered, 0)
	if !bytes.Equal(a, b) {
		t.Fatalf("filtered and unfiltered bak0 differ: %q vs %q", a, b)
	}
}
