// Package config holds the run-wide settings for a backup: source and
// output directories, the optional reference index, chunk and backup-size
// caps, and the optional output filter command.
//
// One explicit value, built by a single validating constructor, threaded
// through the components that need it, replaces any process-wide mutable
// configuration. Lazily-parsed fields become eagerly computed members.
package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

// DefaultChunkSize and DefaultBackupSize are the CLI's default sizes.
const (
	DefaultChunkSize  = "128MiB"
	DefaultBackupSize = "3GiB"
)

// Config is the validated, immutable settings for one run.
type Config struct {
	SourceDir  string
	OutDir     string
	RefIndex   string // empty selects initial mode
	ChunkSize  int64
	BackupSize int64
	FilterArgv []string
}

// New builds and validates a Config from raw CLI input. chunkSizeStr and
// backupSizeStr are human-readable sizes such as "128MiB" or "3GiB".
func New(sourceDir, outDir, refIndex, chunkSizeStr, backupSizeStr string, filterArgv []string) (*Config, error) {
	if sourceDir == "" {
		return nil, fmt.Errorf("config: source directory is required")
	}
	if outDir == "" {
		return nil, fmt.Errorf("config: --out-dir is required")
	}

	chunkSize, err := humanize.ParseBytes(chunkSizeStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid --chunk-size %q: %w", chunkSizeStr, err)
	}
	backupSize, err := humanize.ParseBytes(backupSizeStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid --backup-size %q: %w", backupSizeStr, err)
	}
	if backupSize < chunkSize {
		return nil, fmt.Errorf("config: --backup-size (%d) must be >= --chunk-size (%d)", backupSize, chunkSize)
	}

	if err := ensureOutDir(outDir); err != nil {
		return nil, err
	}

	return &Config{
		SourceDir:  sourceDir,
		OutDir:     outDir,
		RefIndex:   refIndex,
		ChunkSize:  int64(chunkSize),
		BackupSize: int64(backupSize),
		FilterArgv: filterArgv,
	}, nil
}

// Differential reports whether a reference index was supplied.
func (c *Config) Differential() bool {
	return c.RefIndex != ""
}

// ensureOutDir requires the output directory to be empty or not exist; it
// is created if missing.
func ensureOutDir(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0o755)
	case err != nil:
		return fmt.Errorf("config: reading --out-dir %q: %w", dir, err)
	case len(entries) > 0:
		return fmt.Errorf("config: --out-dir %q is not empty", dir)
	default:
		return nil
	}
}
