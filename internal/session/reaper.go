package session

import (
	"context"
	"log"
	"time"
)

// Reaper reclaims sessions that were created but never started. The window
// is a deployment parameter, not part of the workflow contract.
type Reaper struct {
	logger   *log.Logger
	store    Store
	window   time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewReaper(logger *log.Logger, store Store, window, interval time.Duration) *Reaper {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		logger:   logger,
		store:    store,
		window:   window,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Reaper) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.window)
	reclaimed, err := r.store.CancelStale(ctx, cutoff)
	if err != nil {
		r.logger.Printf("session reap failed err=%v", err)
		return
	}
	if reclaimed > 0 {
		r.logger.Printf("reclaimed abandoned sessions count=%d window=%s", reclaimed, r.window)
	}
}
