// Package testutil holds small fixture helpers shared by this project's
// package tests: building a source tree on disk and reading back a bak
// file's raw bytes.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteTree creates dir/name = content for every entry in files, creating
// any needed subdirectories.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

// BakBytes reads the full contents of bak<n> under dir.
func BakBytes(t *testing.T, dir string, n int) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "bak"+strconv.Itoa(n)))
	if err != nil {
		t.Fatalf("reading bak%d: %v", n, err)
	}
	return data
}
