package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRunBackup_InitialRun(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out")

	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{src, "--out-dir", out, "--chunk-size", "4096", "--backup-size", "1MiB"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := os.Stat(filepath.Join(out, "index.db")); err != nil {
		t.Fatalf("expected index.db to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "bak0")); err != nil {
		t.Fatalf("expected bak0 to exist: %v", err)
	}
	if stdout.Len() == 0 {
		t.Errorf("expected summary output")
	}
}

func TestRunBackup_InitialRun_ShortFlags(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{src, "-o", out, "-c", "4096", "-s", "1MiB"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "index.db")); err != nil {
		t.Fatalf("expected index.db to exist: %v", err)
	}
}

func TestRunBackup_MissingOutDirFlag(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{t.TempDir()})
	root.SetOut(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for missing required --out-dir")
	}
}

func TestSplitFilterArgv_ConsumesRemainderAfterShortFlag(t *testing.T) {
	rest, filter := splitFilterArgv([]string{"src", "-o", "out", "-f", "zstd", "-9", "--long=27"})

	wantRest := []string{"src", "-o", "out"}
	if len(rest) != len(wantRest) {
		t.Fatalf("rest = %v, want %v", rest, wantRest)
	}
	for i := range wantRest {
		if rest[i] != wantRest[i] {
			t.Fatalf("rest = %v, want %v", rest, wantRest)
		}
	}

	wantFilter := []string{"zstd", "-9", "--long=27"}
	if len(filter) != len(wantFilter) {
		t.Fatalf("filter = %v, want %v", filter, wantFilter)
	}
	for i := range wantFilter {
		if filter[i] != wantFilter[i] {
			t.Fatalf("filter = %v, want %v", filter, wantFilter)
		}
	}
}

func TestSplitFilterArgv_ConsumesRemainderAfterLongFlag(t *testing.T) {
	rest, filter := splitFilterArgv([]string{"src", "--out-dir", "out", "--backup-output-filter", "cat"})

	if len(rest) != 3 {
		t.Fatalf("rest = %v, want 3 tokens", rest)
	}
	if len(filter) != 1 || filter[0] != "cat" {
		t.Fatalf("filter = %v, want [cat]", filter)
	}
}

func TestSplitFilterArgv_NoFilterFlagLeavesArgsUntouched(t *testing.T) {
	args := []string{"src", "-o", "out"}
	rest, filter := splitFilterArgv(args)

	if len(rest) != len(args) {
		t.Fatalf("rest = %v, want %v", rest, args)
	}
	if filter != nil {
		t.Fatalf("expected nil filter, got %v", filter)
	}
}

func TestRunBackup_BackupOutputFilterPipesPayload(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("filtered payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(t.TempDir(), "out")

	filterArgv = []string{"cat"}
	defer func() { filterArgv = nil }()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{src, "-o", out, "-c", "4096", "-s", "1MiB"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "bak0")); err != nil {
		t.Fatalf("expected bak0 to exist: %v", err)
	}
}
