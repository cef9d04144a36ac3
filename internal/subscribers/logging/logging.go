package logging

import (
	"context"
	"log"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
)

type Subscriber struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Subscriber {
	return &Subscriber{logger: logger}
}

func (s *Subscriber) Name() string {
	return "logging"
}

func (s *Subscriber) Handle(_ context.Context, event protocol.Event) error {
	switch event.Type {
	case protocol.EventTypeAgentStream:
		// Chunk payloads are noisy; log arrival only.
		s.logger.Printf("event type=%s session_id=%s agent=%s chunk_len=%d",
			event.Type, event.SessionID, event.AgentName, len(event.Content))
	case protocol.EventTypeSessionError:
		s.logger.Printf("event type=%s session_id=%s error=%q", event.Type, event.SessionID, event.Error)
	default:
		s.logger.Printf("event type=%s session_id=%s agent=%s blueprint_id=%s",
			event.Type, event.SessionID, event.AgentName, event.BlueprintID)
	}
	return nil
}
