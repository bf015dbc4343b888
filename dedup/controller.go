package dedup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/AumSahayata/bakpack/hashx"
	"github.com/AumSahayata/bakpack/model"
)

// CopyForward is a file whose content was already written by a reference
// run. Its chunk placements are copied into the new run's index verbatim,
// including their original bak file indices and offsets; no bytes are
// rewritten.
type CopyForward struct {
	Entry  model.FileEntry
	Hash   model.Hash
	Chunks []model.Placement
}

// Duplicate is a file whose content is new to this run but byte-identical
// to another file already placed in this same run's ToWrite list. It needs
// a file-table row under the shared hash; the chunk rows already exist
// once the representative (the first file seen with that hash) is packed,
// so a Duplicate carries no chunk placements of its own.
type Duplicate struct {
	Entry model.FileEntry
	Hash  model.Hash
}

// Plan is the outcome of partitioning a scanned file list: files that must
// be chunked and packed (one representative per distinct content hash),
// files that can be copy-forwarded from a reference run untouched, and
// files that duplicate another file's content within this same run.
type Plan struct {
	ToWrite     []model.FileEntry
	CopyForward []CopyForward
	Duplicate   []Duplicate
}

// Controller partitions a scan against an optional reference index. With a
// nil ReferenceIndex, every file is new content (initial-mode backup): the
// only dedup available is against other files in the same run.
type Controller struct {
	sourceDir string
	ref       ReferenceIndex
}

// New builds a Controller that resolves scanned paths against sourceDir
// and deduplicates against ref. ref may be nil for an initial-mode run.
func New(sourceDir string, ref ReferenceIndex) *Controller {
	return &Controller{sourceDir: sourceDir, ref: ref}
}

// Plan partitions entries into files needing chunking, files that can be
// copy-forwarded from a reference run, and files that duplicate another
// entry's content within this run. The metadata tier and hash tier against
// ref are tried first; any entry neither tier resolves falls back to
// within-run content grouping, so that two byte-identical files in a first
// (or differential) run are packed once and share chunk rows, with the
// file table still carrying one row per scanned path. ToWrite is sorted by
// path bytes, so the bak layout does not depend on scan order.
func (c *Controller) Plan(entries []model.FileEntry) (Plan, error) {
	var plan Plan
	seen := make(map[model.Hash]bool, len(entries))

	for _, entry := range entries {
		forwarded, hash, err := c.resolve(entry)
		if err != nil {
			return Plan{}, err
		}
		if forwarded != nil {
			plan.CopyForward = append(plan.CopyForward, *forwarded)
			continue
		}
		if seen[hash] {
			plan.Duplicate = append(plan.Duplicate, Duplicate{Entry: entry, Hash: hash})
			continue
		}
		seen[hash] = true
		plan.ToWrite = append(plan.ToWrite, entry)
	}
	sort.Slice(plan.ToWrite, func(i, j int) bool {
		return bytes.Compare(plan.ToWrite[i].Path, plan.ToWrite[j].Path) < 0
	})
	return plan, nil
}

// resolve decides a single entry's fate against the reference index, if
// any. It returns a non-nil CopyForward when the file's content is already
// known to the reference run, whether because its path/size/mtime matched
// exactly (metadata tier) or because a full re-hash found a matching
// content hash elsewhere in the reference run (hash tier). Otherwise it
// returns the entry's own content hash, for within-run grouping by Plan.
func (c *Controller) resolve(entry model.FileEntry) (*CopyForward, model.Hash, error) {
	if c.ref != nil {
		if rec, ok, err := lookup(c.ref, entry.Path); err != nil {
			return nil, model.Hash{}, fmt.Errorf("dedup: metadata lookup for %q: %w", entry.PathString(), err)
		} else if ok && rec.Size == entry.Size && rec.ModTime == entry.ModTime {
			chunks, err := chunksForHash(c.ref, rec.Hash)
			if err != nil {
				return nil, model.Hash{}, fmt.Errorf("dedup: fetching chunks for %q: %w", entry.PathString(), err)
			}
			return &CopyForward{Entry: entry, Hash: rec.Hash, Chunks: chunks}, rec.Hash, nil
		}
	}

	hash, err := hashFile(filepath.Join(c.sourceDir, entry.PathString()))
	if err != nil {
		return nil, model.Hash{}, fmt.Errorf("dedup: hashing %q: %w", entry.PathString(), err)
	}

	if c.ref != nil {
		known, err := hashKnown(c.ref, hash)
		if err != nil {
			return nil, model.Hash{}, fmt.Errorf("dedup: hash lookup for %q: %w", entry.PathString(), err)
		}
		if known {
			chunks, err := chunksForHash(c.ref, hash)
			if err != nil {
				return nil, model.Hash{}, fmt.Errorf("dedup: fetching chunks for %q: %w", entry.PathString(), err)
			}
			return &CopyForward{Entry: entry, Hash: hash, Chunks: chunks}, hash, nil
		}
	}

	return nil, hash, nil
}

// hashFile computes a file's full content hash without retaining its
// bytes. It backs both the hash-tier comparison against a reference run
// and the within-run grouping by content hash; the pack engine re-reads
// the file and re-hashes it a second time if it turns out to need
// chunking, trading one extra read pass for keeping the dedup decision
// independent of the pack writer's state.
func hashFile(path string) (model.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Hash{}, err
	}
	defer f.Close()

	hr, err := hashx.NewReader(f, hashx.Blake3)
	if err != nil {
		return model.Hash{}, err
	}
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return model.Hash{}, err
	}
	return hr.Finalize(), nil
}
