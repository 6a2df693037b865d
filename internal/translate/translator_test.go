package translate

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/remote"
)

type fakeTranslator struct {
	errs   []error
	calls  int
	text   string
	target string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	f.calls++
	f.text, f.target = text, target
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "translated:" + text, nil
}

func testPolicy() remote.Policy {
	return remote.Policy{MaxAttempts: 3, Base: time.Millisecond}
}

func TestInvoker_Translate(t *testing.T) {
	ft := &fakeTranslator{}
	iv := NewInvoker(ft, testPolicy(), zerolog.Nop())

	out, err := iv.Translate(context.Background(), "hello\nworld", "Spanish")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "translated:hello\nworld" {
		t.Errorf("out = %q", out)
	}
	if ft.calls != 1 || ft.target != "Spanish" {
		t.Errorf("calls = %d target = %q", ft.calls, ft.target)
	}
}

func TestInvoker_RejectsEmptyInput(t *testing.T) {
	ft := &fakeTranslator{}
	iv := NewInvoker(ft, testPolicy(), zerolog.Nop())

	if _, err := iv.Translate(context.Background(), "  \n", "Spanish"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if _, err := iv.Translate(context.Background(), "hi", ""); !errors.Is(err, ErrNoTarget) {
		t.Errorf("err = %v, want ErrNoTarget", err)
	}
	if ft.calls != 0 {
		t.Errorf("translator called %d times", ft.calls)
	}
}

func TestInvoker_RetriesTransientOnly(t *testing.T) {
	reset := remote.Classify(syscall.ECONNRESET)
	ft := &fakeTranslator{errs: []error{reset, reset}}
	iv := NewInvoker(ft, testPolicy(), zerolog.Nop())

	if _, err := iv.Translate(context.Background(), "hi", "German"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if ft.calls != 3 {
		t.Errorf("calls = %d, want 3", ft.calls)
	}

	server := remote.FromResponse(500, nil)
	ft = &fakeTranslator{errs: []error{server}}
	iv = NewInvoker(ft, testPolicy(), zerolog.Nop())
	_, err := iv.Translate(context.Background(), "hi", "German")
	if err != error(server) {
		t.Errorf("err = %v, want server error unmodified", err)
	}
	if ft.calls != 1 {
		t.Errorf("calls = %d, want 1", ft.calls)
	}
}
