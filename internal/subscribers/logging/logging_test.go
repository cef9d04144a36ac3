package logging

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
)

func TestSubscriberHandle(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	s := New(logger)

	event := protocol.Event{Type: protocol.EventTypeSessionStart, SessionID: "sess_1"}
	if err := s.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "logging" {
		t.Fatalf("unexpected name: %s", s.Name())
	}
	if !strings.Contains(buf.String(), "sess_1") {
		t.Fatalf("expected log output to contain session id, got %q", buf.String())
	}
}

func TestSubscriberHandleStreamLogsLengthOnly(t *testing.T) {
	var buf bytes.Buffer
	s := New(log.New(&buf, "", 0))

	event := protocol.Event{
		Type:      protocol.EventTypeAgentStream,
		SessionID: "sess_1",
		AgentName: "researcher",
		Content:   "a very long chunk of streamed text",
	}
	if err := s.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "streamed text") {
		t.Fatalf("expected chunk payload to be omitted, got %q", out)
	}
	if !strings.Contains(out, "chunk_len=34") {
		t.Fatalf("expected chunk length in output, got %q", out)
	}
}

func TestSubscriberHandleErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	s := New(log.New(&buf, "", 0))

	event := protocol.Event{
		Type:      protocol.EventTypeSessionError,
		SessionID: "sess_1",
		Error:     "stage validator failed",
	}
	if err := s.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "stage validator failed") {
		t.Fatalf("expected error message in output, got %q", buf.String())
	}
}
