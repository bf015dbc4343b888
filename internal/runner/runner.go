// Package runner wires the scanner, dedup controller, pack writer, and
// index store into one backup run. It is the component the CLI command
// calls into; cmd/bakpack itself only parses flags and builds a
// config.Config.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/AumSahayata/bakpack/dedup"
	"github.com/AumSahayata/bakpack/internal/config"
	"github.com/AumSahayata/bakpack/internal/scan"
	"github.com/AumSahayata/bakpack/model"
	"github.com/AumSahayata/bakpack/pack"
	"github.com/AumSahayata/bakpack/store"
)

// IndexFileName is the fixed name of the index database written into a
// run's output directory.
const IndexFileName = "index.db"

// memoryIndexSizeLimit is the reference index.db size above which Run
// queries the reference on demand (DBReferenceIndex) instead of loading
// every row into memory (MemoryReferenceIndex). A prior run's index grows
// with its file and chunk counts, not with backup content size, so this is
// sized for row count rather than bytes backed up. Declared as a var
// rather than a const so tests can force the on-demand path without
// needing to actually construct a 64MiB fixture database.
var memoryIndexSizeLimit int64 = 64 << 20

// Stats summarizes one completed run, for logging and tests.
type Stats struct {
	FilesWalked    int
	FilesWritten   int
	FilesCopied    int
	FilesDuplicate int
	ChunksWritten  int
	ChunksCopied   int
}

// Run executes one backup: scan cfg.SourceDir, partition the result
// against cfg.RefIndex (if set), chunk and pack new content, and write a
// fresh index database into cfg.OutDir.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Stats, error) {
	var stats Stats

	entries, err := scan.Walk(cfg.SourceDir)
	if err != nil {
		return stats, fmt.Errorf("runner: scanning %s: %w", cfg.SourceDir, err)
	}
	stats.FilesWalked = len(entries)
	log.Info().Int("files", len(entries)).Str("source", cfg.SourceDir).Msg("scan complete")

	var refIndex dedup.ReferenceIndex
	var refStore *store.Store
	if cfg.Differential() {
		refStore, err = store.Open(cfg.RefIndex)
		if err != nil {
			return stats, fmt.Errorf("runner: opening reference index %s: %w", cfg.RefIndex, err)
		}
		defer refStore.Close()

		refIndex, err = newReferenceIndex(ctx, cfg.RefIndex, refStore, log)
		if err != nil {
			return stats, fmt.Errorf("runner: loading reference index: %w", err)
		}
		log.Info().Str("reference", cfg.RefIndex).Msg("differential mode")
	} else {
		log.Info().Msg("initial mode")
	}

	controller := dedup.New(cfg.SourceDir, refIndex)
	plan, err := controller.Plan(entries)
	if err != nil {
		return stats, fmt.Errorf("runner: planning dedup: %w", err)
	}
	stats.FilesCopied = len(plan.CopyForward)
	stats.FilesDuplicate = len(plan.Duplicate)
	log.Info().
		Int("to_write", len(plan.ToWrite)).
		Int("copy_forward", len(plan.CopyForward)).
		Int("duplicate", len(plan.Duplicate)).
		Msg("dedup plan complete")

	if got := len(plan.ToWrite) + len(plan.CopyForward) + len(plan.Duplicate); got != len(entries) {
		panic(fmt.Sprintf("runner: invariant violated: plan covers %d files but scan produced %d", got, len(entries)))
	}

	idxPath := filepath.Join(cfg.OutDir, IndexFileName)
	idxStore, err := store.Create(ctx, idxPath)
	if err != nil {
		return stats, fmt.Errorf("runner: creating index: %w", err)
	}

	writer := pack.NewWriter(cfg.OutDir, cfg.BackupSize, cfg.FilterArgv)
	engine := pack.NewEngine(cfg.ChunkSize)

	var expectedChunkRows, fileRows, chunkRows int

	// representativeHashes tracks the content hash of every file packed
	// this run, so that Duplicate entries can be sanity-checked against a
	// representative that was actually written before the index commits.
	representativeHashes := make(map[model.Hash]bool, len(plan.ToWrite))

	for _, cf := range plan.CopyForward {
		if err := idxStore.InsertFile(ctx, model.FileRecord{
			Path: cf.Entry.Path, Size: cf.Entry.Size, ModTime: cf.Entry.ModTime, Hash: cf.Hash,
		}); err != nil {
			_ = idxStore.Abort()
			_ = writer.Close()
			return stats, err
		}
		fileRows++
		expectedChunkRows += len(cf.Chunks)

		for _, p := range cf.Chunks {
			if err := idxStore.InsertChunk(ctx, p); err != nil {
				_ = idxStore.Abort()
				_ = writer.Close()
				return stats, err
			}
			chunkRows++
			stats.ChunksCopied++
		}
	}

	for _, entry := range plan.ToWrite {
		path := filepath.Join(cfg.SourceDir, entry.PathString())
		fileHash, placements, err := engine.PackFile(path, entry.Size, writer)
		if err != nil {
			_ = idxStore.Abort()
			_ = writer.Close()
			return stats, fmt.Errorf("runner: packing %s: %w", entry.PathString(), err)
		}

		if err := idxStore.InsertFile(ctx, model.FileRecord{
			Path: entry.Path, Size: entry.Size, ModTime: entry.ModTime, Hash: fileHash,
		}); err != nil {
			_ = idxStore.Abort()
			_ = writer.Close()
			return stats, err
		}
		fileRows++
		expectedChunkRows += len(placements)
		representativeHashes[fileHash] = true

		for _, p := range placements {
			if err := idxStore.InsertChunk(ctx, p); err != nil {
				_ = idxStore.Abort()
				_ = writer.Close()
				return stats, err
			}
			chunkRows++
			stats.ChunksWritten++
		}
		stats.FilesWritten++

		log.Debug().Str("path", entry.PathString()).Int("chunks", len(placements)).Msg("packed file")
	}

	for _, dup := range plan.Duplicate {
		if !representativeHashes[dup.Hash] {
			_ = idxStore.Abort()
			_ = writer.Close()
			panic(fmt.Sprintf("runner: invariant violated: duplicate %q has no packed representative for hash %s", dup.Entry.PathString(), dup.Hash))
		}
		if err := idxStore.InsertFile(ctx, model.FileRecord{
			Path: dup.Entry.Path, Size: dup.Entry.Size, ModTime: dup.Entry.ModTime, Hash: dup.Hash,
		}); err != nil {
			_ = idxStore.Abort()
			_ = writer.Close()
			return stats, err
		}
		fileRows++
	}

	if err := writer.Close(); err != nil {
		_ = idxStore.Abort()
		return stats, fmt.Errorf("runner: closing pack writer: %w", err)
	}

	// Consistency check before commit: every scanned file must have
	// produced exactly one file-table row, and the chunk table must carry
	// exactly the placements the pack engine and copy-forward actually
	// produced. A mismatch means a bug in the accounting above, not a
	// condition a caller can recover from, so it crashes rather than
	// returning an error.
	if fileRows != len(entries) {
		_ = idxStore.Abort()
		panic(fmt.Sprintf("runner: invariant violated: wrote %d file-table rows for %d scanned files", fileRows, len(entries)))
	}
	if chunkRows != expectedChunkRows {
		_ = idxStore.Abort()
		panic(fmt.Sprintf("runner: invariant violated: wrote %d chunk-table rows, expected %d", chunkRows, expectedChunkRows))
	}

	if err := idxStore.Finalize(); err != nil {
		return stats, fmt.Errorf("runner: finalizing index: %w", err)
	}

	log.Info().
		Int("files_written", stats.FilesWritten).
		Int("files_copied", stats.FilesCopied).
		Int("files_duplicate", stats.FilesDuplicate).
		Int("chunks_written", stats.ChunksWritten).
		Int("chunks_copied", stats.ChunksCopied).
		Msg("run complete")

	return stats, nil
}

// newReferenceIndex picks between the eager in-memory backend and the
// on-demand database backend for a reference run, based on the size of its
// index.db: a small reference is cheapest to load once; a very large one
// is cheaper to query on demand than to hold entirely in memory.
func newReferenceIndex(ctx context.Context, refIndexPath string, refStore *store.Store, log zerolog.Logger) (dedup.ReferenceIndex, error) {
	info, err := os.Stat(refIndexPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", refIndexPath, err)
	}

	if info.Size() > memoryIndexSizeLimit {
		log.Info().Int64("ref_index_bytes", info.Size()).Msg("reference index large; querying on demand")
		return dedup.NewDBReferenceIndex(ctx, refStore), nil
	}

	log.Info().Int64("ref_index_bytes", info.Size()).Msg("reference index small; loading into memory")
	return dedup.LoadMemoryReferenceIndex(ctx, refStore)
}
