package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, event Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("disabled config must return nil dispatcher")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherStampsAndFlushesOnClose(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, func() time.Time { return fixed })

	d.Emit(context.Background(), Event{EventType: "token_issued", SubjectID: "u1", Success: true})
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after_close"})

	select {
	case got := <-sink.Events():
		if got.EventType != "token_issued" || !got.Timestamp.Equal(fixed) {
			t.Fatalf("unexpected event %+v", got)
		}
	default:
		t.Fatal("expected flushed event")
	}
	select {
	case got := <-sink.Events():
		t.Fatalf("event after close must be dropped: %+v", got)
	default:
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "code_session_created"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "revoke_all", SubjectID: "u1"})
	sink.Emit(context.Background(), Event{EventType: "token_rejected", Error: "revoked"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SubjectID != "u1" {
		t.Fatalf("unexpected subject %q", decoded.SubjectID)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "token_issued", Success: true, SubjectID: "u1"})
	sink.Emit(context.Background(), Event{EventType: "token_tamper", Metadata: map[string]string{"reason": "guard"}})

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected INFO and WARN records, got %s", out)
	}
	if !strings.Contains(out, `"reason":"guard"`) {
		t.Fatalf("expected metadata group, got %s", out)
	}
}
