// Package store implements the on-disk index database: a single SQLite
// file holding the "index" (per-file) and "chunk" (per-placement) tables
// that describe one backup run.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"

	"github.com/AumSahayata/bakpack/model"
)

//go:embed schema.sql
var schema string

// Store is a handle to one run's index database, open for writing at a
// temporary path until Finalize renames it into place.
type Store struct {
	db       *sql.DB
	tmpPath  string
	finalPath string
	tx       *sql.Tx
}

// Create opens a fresh index database at a temporary path beside
// finalPath, applies the schema, and begins the single transaction the
// run's writes will go through.
func Create(ctx context.Context, finalPath string) (*Store, error) {
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := openFile(tmpPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: beginning transaction: %w", err)
	}

	return &Store{db: db, tmpPath: tmpPath, finalPath: finalPath, tx: tx}, nil
}

// Open opens an existing, finalized index database for querying, for use
// as a differential run's reference index. The connection uses the same
// URL as Create (SQLite's default read-write mode); the returned Store has
// no transaction, so its insert methods and Finalize are not usable.
func Open(path string) (*Store, error) {
	db, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, finalPath: path}, nil
}

func openFile(path string) (*sql.DB, error) {
	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {"foreign_keys(1)"},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging %s: %w", path, err)
	}
	return db, nil
}

// InsertFile records one file-table row within the run's transaction.
func (s *Store) InsertFile(ctx context.Context, rec model.FileRecord) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO "index" (path, size, mtime, hash) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET size=excluded.size, mtime=excluded.mtime, hash=excluded.hash`,
		rec.Path, rec.Size, rec.ModTime, rec.Hash[:])
	if err != nil {
		return fmt.Errorf("store: inserting file %q: %w", rec.Path, err)
	}
	return nil
}

// InsertChunk records one chunk-table row within the run's transaction.
func (s *Store) InsertChunk(ctx context.Context, p model.Placement) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO chunk (file_hash, chunk_hash, bak_n, offset, size) VALUES (?, ?, ?, ?, ?)`,
		p.FileHash[:], p.ChunkHash[:], p.BakIndex, p.Offset, p.Size)
	if err != nil {
		return fmt.Errorf("store: inserting chunk placement %s: %w", p, err)
	}
	return nil
}

// Finalize commits the run's transaction and atomically renames the
// temporary database into its final path.
func (s *Store) Finalize() error {
	if s.tx == nil {
		return fmt.Errorf("store: Finalize called on a read-only Store")
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("store: committing index: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: closing index: %w", err)
	}
	if err := os.Rename(s.tmpPath, s.finalPath); err != nil {
		return fmt.Errorf("store: renaming index into place: %w", err)
	}
	return nil
}

// Abort rolls back the run's transaction and removes the temporary
// database file, for use when a run fails before Finalize.
func (s *Store) Abort() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
	}
	_ = s.db.Close()
	if s.tmpPath != "" {
		return os.Remove(s.tmpPath)
	}
	return nil
}

// Close closes a Store opened with Open.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileByPath looks up a file-table row by path, for the metadata-tier
// dedup check. ok is false if no row exists.
func (s *Store) FileByPath(ctx context.Context, path []byte) (rec model.FileRecord, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, size, mtime, hash FROM "index" WHERE path = ?`, path)

	var hashBytes []byte
	err = row.Scan(&rec.Path, &rec.Size, &rec.ModTime, &hashBytes)
	switch {
	case err == sql.ErrNoRows:
		return model.FileRecord{}, false, nil
	case err != nil:
		return model.FileRecord{}, false, fmt.Errorf("store: querying file %q: %w", path, err)
	}
	copy(rec.Hash[:], hashBytes)
	return rec, true, nil
}

// HashExists reports whether a file-table row with the given content hash
// exists, for the hash-tier dedup check.
func (s *Store) HashExists(ctx context.Context, hash model.Hash) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM "index" WHERE hash = ?`, hash[:]).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: checking hash %s: %w", hash, err)
	}
	return n > 0, nil
}

// ChunksForFileHash returns every chunk-table row belonging to the given
// file hash, ordered for deterministic replay. Used to copy a reference
// run's placements forward into a differential run's own index.
func (s *Store) ChunksForFileHash(ctx context.Context, hash model.Hash) ([]model.Placement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_hash, chunk_hash, bak_n, offset, size FROM chunk WHERE file_hash = ? ORDER BY bak_n, offset`,
		hash[:])
	if err != nil {
		return nil, fmt.Errorf("store: querying chunks for file hash %s: %w", hash, err)
	}
	defer rows.Close()

	var placements []model.Placement
	for rows.Next() {
		var p model.Placement
		var fh, ch []byte
		if err := rows.Scan(&fh, &ch, &p.BakIndex, &p.Offset, &p.Size); err != nil {
			return nil, fmt.Errorf("store: scanning chunk row: %w", err)
		}
		copy(p.FileHash[:], fh)
		copy(p.ChunkHash[:], ch)
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

// AllChunks loads the entire chunk table, for MemoryReferenceIndex.
func (s *Store) AllChunks(ctx context.Context) ([]model.Placement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_hash, chunk_hash, bak_n, offset, size FROM chunk ORDER BY file_hash, bak_n, offset`)
	if err != nil {
		return nil, fmt.Errorf("store: loading chunk table: %w", err)
	}
	defer rows.Close()

	var placements []model.Placement
	for rows.Next() {
		var p model.Placement
		var fh, ch []byte
		if err := rows.Scan(&fh, &ch, &p.BakIndex, &p.Offset, &p.Size); err != nil {
			return nil, fmt.Errorf("store: scanning chunk row: %w", err)
		}
		copy(p.FileHash[:], fh)
		copy(p.ChunkHash[:], ch)
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

// AllFiles loads the entire file table, for MemoryReferenceIndex.
func (s *Store) AllFiles(ctx context.Context) ([]model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, size, mtime, hash FROM "index"`)
	if err != nil {
		return nil, fmt.Errorf("store: loading file table: %w", err)
	}
	defer rows.Close()

	var recs []model.FileRecord
	for rows.Next() {
		var rec model.FileRecord
		var hashBytes []byte
		if err := rows.Scan(&rec.Path, &rec.Size, &rec.ModTime, &hashBytes); err != nil {
			return nil, fmt.Errorf("store: scanning file row: %w", err)
		}
		copy(rec.Hash[:], hashBytes)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
