package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/pipeline"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []pipeline.Request
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{JobID: "job", TranscriptFile: "t.txt", TranslationFile: "u.txt"}, nil
}

func (f *fakeRunner) calls() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueue_ProcessesAndMovesToDone(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "talk.mp3", "audio")
	runner := &fakeRunner{}
	q := NewQueue(QueueOptions{Runner: runner, SourceLanguage: "Auto-detect", TargetLanguage: "Spanish", Log: zerolog.Nop()})
	q.Start()
	defer q.Stop()

	if !q.Enqueue(Job{Path: path}) {
		t.Fatal("Enqueue returned false")
	}
	waitFor(t, "job completion", func() bool { return q.Stats().Completed == 1 })

	reqs := runner.calls()
	if len(reqs) != 1 {
		t.Fatalf("runner called %d times", len(reqs))
	}
	if reqs[0].Filename != "talk.mp3" || string(reqs[0].AudioData) != "audio" {
		t.Errorf("request = %q (%q)", reqs[0].Filename, reqs[0].AudioData)
	}
	if reqs[0].TargetLanguage != "Spanish" || reqs[0].SourceLanguage != "Auto-detect" {
		t.Errorf("languages = %q -> %q", reqs[0].SourceLanguage, reqs[0].TargetLanguage)
	}
	waitFor(t, "file moved to done/", func() bool {
		_, err := os.Stat(filepath.Join(dir, "done", "talk.mp3"))
		return err == nil
	})
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original still in inbox")
	}
}

func TestQueue_FailureMovesToFailed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.wav", "audio")
	runner := &fakeRunner{err: &pipeline.Error{Stage: pipeline.StageConversion, Err: errors.New("exit status 1")}}
	q := NewQueue(QueueOptions{Runner: runner, TargetLanguage: "English", Log: zerolog.Nop()})
	q.Start()
	defer q.Stop()

	q.Enqueue(Job{Path: path})
	waitFor(t, "job failure", func() bool { return q.Stats().Failed == 1 })
	waitFor(t, "file moved to failed/", func() bool {
		_, err := os.Stat(filepath.Join(dir, "failed", "bad.wav"))
		return err == nil
	})
}

func TestQueue_FullAndDuplicate(t *testing.T) {
	q := NewQueue(QueueOptions{Runner: &fakeRunner{}, QueueSize: 1, Log: zerolog.Nop()})

	if !q.Enqueue(Job{Path: "/inbox/a.mp3"}) {
		t.Fatal("first enqueue rejected")
	}
	if !q.Enqueue(Job{Path: "/inbox/a.mp3"}) {
		t.Error("duplicate path should be accepted as already queued")
	}
	if q.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", q.Pending())
	}
	if q.Enqueue(Job{Path: "/inbox/b.mp3"}) {
		t.Error("enqueue into full queue should return false")
	}
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	q := NewQueue(QueueOptions{Runner: &fakeRunner{}, Log: zerolog.Nop()})
	q.Start()
	q.Stop()
	q.Stop()
	if q.Enqueue(Job{Path: "/inbox/a.mp3"}) {
		t.Error("enqueue after Stop should return false")
	}
}
