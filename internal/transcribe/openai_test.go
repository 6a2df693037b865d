package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snarg/audio-translator/internal/remote"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chunk.mp3")
	if err := os.WriteFile(p, []byte("fake-mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenAIClient_Transcribe(t *testing.T) {
	var gotFields map[string]string
	var gotFile, gotFilename, gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
			gotFilename = hdr.Filename
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "hola mundo\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/", "sk-test", "", 5*time.Second)
	resp, err := c.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{Language: "es"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Text != "hola mundo\n" {
		t.Errorf("Text = %q", resp.Text)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotFields["model"] != DefaultModel {
		t.Errorf("model = %q, want %q", gotFields["model"], DefaultModel)
	}
	if gotFields["response_format"] != "text" {
		t.Errorf("response_format = %q", gotFields["response_format"])
	}
	if gotFields["language"] != "es" {
		t.Errorf("language = %q", gotFields["language"])
	}
	if gotFile != "fake-mp3" || gotFilename != "chunk.mp3" {
		t.Errorf("file = %q (%s)", gotFile, gotFilename)
	}
}

func TestOpenAIClient_OmitsEmptyLanguage(t *testing.T) {
	var hasLanguage bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		_, hasLanguage = r.MultipartForm.Value["language"]
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", "whisper-1", 5*time.Second)
	if _, err := c.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if hasLanguage {
		t.Error("language field sent for auto-detect")
	}
}

func TestOpenAIClient_JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"from json"}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", "", 5*time.Second)
	resp, err := c.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Text != "from json" {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestOpenAIClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   remote.Kind
	}{
		{http.StatusUnauthorized, remote.KindAuth},
		{http.StatusTooManyRequests, remote.KindRateLimit},
		{http.StatusBadRequest, remote.KindBadRequest},
		{http.StatusInternalServerError, remote.KindServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			c := NewOpenAIClient(srv.URL, "k", "", 5*time.Second)
			_, err := c.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
			if got := remote.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestOpenAIClient_ConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenAIClient(url, "k", "", 5*time.Second)
	_, err := c.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
	if !remote.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestOpenAIClient_MissingFile(t *testing.T) {
	c := NewOpenAIClient("http://127.0.0.1:1", "k", "", time.Second)
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"), TranscribeOpts{})
	if err == nil {
		t.Fatal("expected error")
	}
	if remote.IsTransient(err) {
		t.Error("missing local file must not be retried")
	}
}
