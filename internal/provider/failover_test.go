package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"meetly/internal/domain"
)

type stubCompleter struct {
	name  string
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	s.calls++
	return s.reply, s.err
}
func (s *stubCompleter) Name() string                     { return s.name }
func (s *stubCompleter) Healthy(ctx context.Context) error { return s.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFailoverUsesFirstHealthy(t *testing.T) {
	first := &stubCompleter{name: "a", reply: "from a"}
	second := &stubCompleter{name: "b", reply: "from b"}
	f := NewFailover([]domain.Completer{first, second}, testLogger())

	got, err := f.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from a" {
		t.Errorf("reply = %q, want %q", got, "from a")
	}
	if second.calls != 0 {
		t.Errorf("second completer was called %d times, want 0", second.calls)
	}
}

func TestFailoverFallsBack(t *testing.T) {
	first := &stubCompleter{name: "a", err: errors.New("down")}
	second := &stubCompleter{name: "b", reply: "from b"}
	f := NewFailover([]domain.Completer{first, second}, testLogger())

	got, err := f.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from b" {
		t.Errorf("reply = %q, want %q", got, "from b")
	}
}

func TestFailoverAllFail(t *testing.T) {
	first := &stubCompleter{name: "a", err: errors.New("down")}
	second := &stubCompleter{name: "b", err: errors.New("also down")}
	f := NewFailover([]domain.Completer{first, second}, testLogger())

	if _, err := f.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error when every completer fails")
	}
}
