package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meshtools/meshdb/internal/storage"
)

func TestDBPathForDirectory(t *testing.T) {
	dir := t.TempDir()

	path, err := storage.DBPathFor(dir, 111)
	if err != nil {
		t.Fatalf("DBPathFor: %v", err)
	}
	if path != filepath.Join(dir, "111.db") {
		t.Fatalf("expected %s, got %s", filepath.Join(dir, "111.db"), path)
	}
}

func TestDBPathForFilePattern(t *testing.T) {
	dir := t.TempDir()

	path, err := storage.DBPathFor(filepath.Join(dir, "mesh.sqlite3"), 111)
	if err != nil {
		t.Fatalf("DBPathFor: %v", err)
	}
	if path != filepath.Join(dir, "mesh.111.sqlite3") {
		t.Fatalf("expected owner interpolated before extension, got %s", path)
	}
}

func TestDBPathForFileWithoutExtension(t *testing.T) {
	dir := t.TempDir()

	path, err := storage.DBPathFor(filepath.Join(dir, "mesh"), 111)
	if err != nil {
		t.Fatalf("DBPathFor: %v", err)
	}
	if path != filepath.Join(dir, "mesh.111.sqlite3") {
		t.Fatalf("expected sqlite3 suffix appended, got %s", path)
	}
}

func TestDBPathForEmptyBase(t *testing.T) {
	path, err := storage.DBPathFor("", 111)
	if err != nil {
		t.Fatalf("DBPathFor: %v", err)
	}
	if !filepath.IsAbs(path) || !strings.HasSuffix(path, "111.db") {
		t.Fatalf("expected absolute <owner>.db path, got %s", path)
	}
}

func TestInferOwnerCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"12345678.db",
		"mesh.2222.sqlite3",
		"notes.txt",
		"short.99.db",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := storage.InferOwnerCandidates(dir)
	if err != nil {
		t.Fatalf("InferOwnerCandidates: %v", err)
	}

	want := []uint32{2222, 12345678}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestInferOwnerCandidatesMissingDir(t *testing.T) {
	got, err := storage.InferOwnerCandidates(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("InferOwnerCandidates: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing directory, got %v", got)
	}
}
