package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	b := filepath.Join(dir, "b.mp3")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n := RemoveFiles(zerolog.Nop(), a, "", filepath.Join(dir, "missing.mp3"), b)
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
}

func TestRemoveFiles_NonEmptyDirectoryKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(filepath.Join(sub, "inner"), 0o755); err != nil {
		t.Fatal(err)
	}
	f := filepath.Join(dir, "after.mp3")
	os.WriteFile(f, []byte("x"), 0o644)

	if n := RemoveFiles(zerolog.Nop(), sub, f); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(f); !os.IsNotExist(err) {
		t.Error("file after a failed delete was not removed")
	}
}
