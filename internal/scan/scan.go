// Package scan walks a source tree and produces the file list a backup run
// operates over.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AumSahayata/bakpack/model"
)

// Walk visits every regular file under root and returns its metadata as a
// model.FileEntry. Hidden files are included. Symlinks are not followed:
// a symlink entry is skipped entirely rather than walked into or recorded,
// since the backup format has no representation for link targets.
// Empty files (size 0) are filtered out here, per the project's choice to
// keep the index and chunk tables free of zero-chunk file rows.
func Walk(root string) ([]model.FileEntry, error) {
	var entries []model.FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entries = append(entries, model.FileEntry{
			Path:    []byte(filepath.ToSlash(rel)),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
