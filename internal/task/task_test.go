package task

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards the log output against the handler writing while the
// test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestGo_LogsTerminalError(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	Go(logger, "failing task", func() error {
		return errors.New("boom")
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := out.String()
		if strings.Contains(s, "task failed") && strings.Contains(s, "boom") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task error was not logged, output: %q", out.String())
}

func TestGo_SilentOnSuccess(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	done := make(chan struct{})
	Go(logger, "quiet task", func() error {
		defer close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	// Any error log would be written after fn returns.
	time.Sleep(20 * time.Millisecond)
	if got := out.String(); got != "" {
		t.Errorf("unexpected log output: %q", got)
	}
}
