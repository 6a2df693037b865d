package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/config"
)

func TestArtifactName(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC))
	if ts != "20240115_143022" {
		t.Fatalf("Timestamp = %q", ts)
	}
	if got := ArtifactName("en", ts); got != "transcript_en_20240115_143022.txt" {
		t.Errorf("ArtifactName(en) = %q", got)
	}
	if got := ArtifactName("", ts); got != "transcript_original_20240115_143022.txt" {
		t.Errorf("ArtifactName(\"\") = %q", got)
	}
}

func TestArtifactKey_SameNameDifferentKinds(t *testing.T) {
	name := ArtifactName("en", "20240115_143022")
	tk := ArtifactKey("job-1", KindTranscript, name)
	uk := ArtifactKey("job-1", KindTranslation, name)
	if tk != "job-1/transcript/transcript_en_20240115_143022.txt" {
		t.Errorf("transcript key = %q", tk)
	}
	if tk == uk {
		t.Fatalf("kinds share key %q", tk)
	}

	dir := t.TempDir()
	s := NewLocalStore(dir)
	for key, body := range map[string]string{tk: "hello", uk: "HELLO"} {
		if err := s.Save(context.Background(), key, []byte(body), "text/plain"); err != nil {
			t.Fatalf("Save(%s): %v", key, err)
		}
	}
	got, err := os.ReadFile(filepath.Join(dir, "job-1", "transcript", name))
	if err != nil || string(got) != "hello" {
		t.Errorf("transcript on disk = %q, %v", got, err)
	}
}

func TestLocalStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewLocalStore(dir)

	if err := s.Save(context.Background(), "transcript_de_20240115_143022.txt", []byte("Hallo"), "text/plain"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "transcript_de_20240115_143022.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "Hallo" {
		t.Errorf("content = %q", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (no temp leftovers)", len(entries))
	}
	if s.Type() != "local" {
		t.Errorf("Type = %q", s.Type())
	}
}

func TestNew_Disabled(t *testing.T) {
	store, err := New(config.S3Config{}, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store != nil {
		t.Errorf("store = %v, want nil when nothing configured", store)
	}
}

func TestNew_LocalOnly(t *testing.T) {
	store, err := New(config.S3Config{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store == nil || store.Type() != "local" {
		t.Errorf("store = %v, want local", store)
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "a.txt"); got != "transcripts/a.txt" {
		t.Errorf("objectKey = %q", got)
	}
	if got := objectKey("team", "a.txt"); got != "team/transcripts/a.txt" {
		t.Errorf("objectKey = %q", got)
	}
}
