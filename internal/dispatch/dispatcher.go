package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
	"github.com/kc-vaultik/shapex-studio/internal/subscribers"
)

// Dispatcher fans workflow events out to side-channel subscribers.
// Delivery is best effort and never blocks the emitting workflow:
// each subscriber gets its own goroutine and a bounded retry loop.
type Dispatcher struct {
	logger       *log.Logger
	subscribers  []subscribers.Subscriber
	retryCount   int
	retryBackoff time.Duration
}

func New(logger *log.Logger, subs []subscribers.Subscriber) *Dispatcher {
	return &Dispatcher{
		logger:       logger,
		subscribers:  subs,
		retryCount:   3,
		retryBackoff: 150 * time.Millisecond,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event protocol.Event) {
	for _, sub := range d.subscribers {
		s := sub
		go d.dispatchOne(ctx, s, event)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, sub subscribers.Subscriber, event protocol.Event) {
	for attempt := 1; attempt <= d.retryCount; attempt++ {
		err := sub.Handle(ctx, event)
		if err == nil {
			return
		}

		d.logger.Printf("subscriber=%s event_type=%s session_id=%s attempt=%d err=%v",
			sub.Name(), event.Type, event.SessionID, attempt, err)
		if attempt == d.retryCount {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryBackoff):
		}
	}
}
