// Package poller runs periodic fetches and delivers only the freshest result.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FetchFunc retrieves one snapshot of a resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller calls a FetchFunc on every tick. Each request carries a sequence number: starting a
// new request cancels the one still in flight, and a response is delivered only if no newer
// response was delivered before it. A failed fetch is reported and retried on the next tick.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	onResult func(T)
	onError  func(error)
	log      logrus.FieldLogger

	mu        sync.Mutex
	seq       uint64
	delivered uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Poller.
type Option[T any] func(*Poller[T])

// OnError sets a callback for failed fetches. Superseded requests are not reported.
func OnError[T any](fn func(error)) Option[T] {
	return func(p *Poller[T]) { p.onError = fn }
}

// WithLogger sets the logger used for failed fetches.
func WithLogger[T any](l logrus.FieldLogger) Option[T] {
	return func(p *Poller[T]) { p.log = l }
}

// New returns a poller named name that delivers results of fetch to onResult.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], onResult func(T), opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		onResult: onResult,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then on every interval until ctx is done. It waits for in-flight
// requests to finish before returning.
func (p *Poller[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.Trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.cancel != nil {
				p.cancel()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.Trigger(ctx)
		}
	}
}

// Trigger starts a request now, cancelling any request still in flight.
func (p *Poller[T]) Trigger(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()
		result, err := p.fetch(reqCtx)
		if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Shutdown, not a failure.
			return
		}
		p.complete(seq, result, err)
	}()
}

func (p *Poller[T]) complete(seq uint64, result T, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.delivered {
		return
	}
	if err != nil {
		// A newer request exists; this one was cancelled or is stale.
		if seq < p.seq {
			return
		}
		p.log.WithError(err).WithFields(logrus.Fields{"poller": p.name, "seq": seq}).Warn("Poll failed")
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	p.delivered = seq
	p.onResult(result)
}

// Delivered returns the sequence number of the last delivered result.
func (p *Poller[T]) Delivered() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}
