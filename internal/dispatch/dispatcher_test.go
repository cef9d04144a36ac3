package dispatch

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kc-vaultik/shapex-studio/internal/protocol"
	"github.com/kc-vaultik/shapex-studio/internal/subscribers"
)

type fakeSubscriber struct {
	name      string
	failUntil int

	mu    sync.Mutex
	calls int
	ch    chan protocol.Event
}

func (f *fakeSubscriber) Name() string {
	return f.name
}

func (f *fakeSubscriber) Handle(_ context.Context, event protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return errors.New("forced failure")
	}
	if f.ch != nil {
		f.ch <- event
	}
	return nil
}

func (f *fakeSubscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	sub := &fakeSubscriber{name: "sub", failUntil: 2, ch: make(chan protocol.Event, 1)}
	d := New(logger, []subscribers.Subscriber{sub})
	event := protocol.Event{Type: protocol.EventTypeSessionStart, SessionID: "sess_1"}

	d.Dispatch(context.Background(), event)

	select {
	case got := <-sub.ch:
		if got.SessionID != event.SessionID {
			t.Fatalf("unexpected session id: %s", got.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}

	if calls := sub.Calls(); calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDispatcherStopsAfterRetries(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	sub := &fakeSubscriber{name: "sub", failUntil: 10, ch: make(chan protocol.Event, 1)}
	d := New(logger, []subscribers.Subscriber{sub})
	event := protocol.Event{Type: protocol.EventTypeSessionError, SessionID: "sess_2"}

	d.Dispatch(context.Background(), event)
	time.Sleep(800 * time.Millisecond)

	if calls := sub.Calls(); calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	select {
	case <-sub.ch:
		t.Fatalf("did not expect successful dispatch")
	default:
	}
}

func TestDispatcherFansOutToAllSubscribers(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	first := &fakeSubscriber{name: "first", ch: make(chan protocol.Event, 1)}
	second := &fakeSubscriber{name: "second", ch: make(chan protocol.Event, 1)}
	d := New(logger, []subscribers.Subscriber{first, second})

	d.Dispatch(context.Background(), protocol.Event{Type: protocol.EventTypeSessionComplete, SessionID: "sess_3"})

	for _, sub := range []*fakeSubscriber{first, second} {
		select {
		case got := <-sub.ch:
			if got.SessionID != "sess_3" {
				t.Fatalf("subscriber %s got unexpected session id: %s", sub.name, got.SessionID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for subscriber %s", sub.name)
		}
	}
}
