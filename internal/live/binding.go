// Package live binds store queries to long-lived, cancellable subscriptions
// that keep a local {Data, Loading, Err} mirror up to date.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"slope-monitor-backend/internal/realtime"
)

var (
	// ErrSubscription marks a live query that failed. The subscription stays
	// dead until the binding is stopped and started again.
	ErrSubscription = errors.New("live: subscription failed")
	// ErrRead marks a failed one-shot read.
	ErrRead = errors.New("live: read failed")
)

// State is what a binding exposes to its owner.
type State[T any] struct {
	Data    T
	Loading bool
	Err     error
}

type subscribeFunc[T any] func(ctx context.Context, f *realtime.Feed, c realtime.Collection, fetch realtime.FetchFunc[T], onNext func(T), onErr func(error)) func()

// Binding owns at most one live subscription for a filter of type F.
//
// Start and Stop are serialised. A previous subscription is always cancelled,
// and its goroutine has exited, before the next one is created. Deliveries
// that race with a restart are dropped.
type Binding[F comparable, T any] struct {
	feed       *realtime.Feed
	collection realtime.Collection
	query      func(ctx context.Context, filter F) (T, error)
	// idle reports filters for which nothing should be subscribed.
	idle      func(filter F) bool
	subscribe subscribeFunc[T]

	startMu sync.Mutex

	mu       sync.Mutex
	started  bool
	filter   F
	gen      uint64
	cancel   func()
	state    State[T]
	onChange func(State[T])
}

func newBinding[F comparable, T any](feed *realtime.Feed, c realtime.Collection, query func(context.Context, F) (T, error), idle func(F) bool) *Binding[F, T] {
	return &Binding[F, T]{
		feed:       feed,
		collection: c,
		query:      query,
		idle:       idle,
		subscribe:  realtime.Subscribe[T],
	}
}

// OnChange registers fn to receive every state change. fn runs on the
// subscription goroutine and must not call Start or Stop.
func (b *Binding[F, T]) OnChange(fn func(State[T])) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// State returns the current state.
func (b *Binding[F, T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Filter returns the filter of the current subscription and whether one was started.
func (b *Binding[F, T]) Filter() (F, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter, b.started
}

// Start subscribes with filter, replacing any previous subscription.
// Starting again with the filter that is already live does nothing.
func (b *Binding[F, T]) Start(filter F) {
	b.startMu.Lock()
	defer b.startMu.Unlock()

	b.mu.Lock()
	if b.started && b.filter == filter {
		b.mu.Unlock()
		return
	}
	prev := b.retire()
	b.mu.Unlock()

	if prev != nil {
		prev()
	}

	b.mu.Lock()
	b.started = true
	b.filter = filter
	gen := b.gen
	var zero T
	if b.idle != nil && b.idle(filter) {
		b.mu.Unlock()
		b.set(gen, State[T]{Data: zero})
		return
	}
	b.mu.Unlock()
	b.set(gen, State[T]{Data: zero, Loading: true})

	cancel := b.subscribe(context.Background(), b.feed, b.collection,
		func(ctx context.Context) (T, error) { return b.query(ctx, filter) },
		func(v T) { b.set(gen, State[T]{Data: v}) },
		func(err error) {
			b.update(gen, func(s State[T]) State[T] {
				return State[T]{Data: s.Data, Err: fmt.Errorf("%w: %w", ErrSubscription, err)}
			})
		},
	)

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// Stop cancels the live subscription, if any. The last data is kept.
func (b *Binding[F, T]) Stop() {
	b.startMu.Lock()
	defer b.startMu.Unlock()

	b.mu.Lock()
	prev := b.retire()
	b.started = false
	gen := b.gen
	b.mu.Unlock()

	if prev != nil {
		prev()
	}
	b.update(gen, func(s State[T]) State[T] {
		s.Loading = false
		return s
	})
}

// retire invalidates in-flight deliveries and hands back the cancel func of
// the current subscription. b.mu must be held.
func (b *Binding[F, T]) retire() func() {
	b.gen++
	cancel := b.cancel
	b.cancel = nil
	return cancel
}

func (b *Binding[F, T]) set(gen uint64, s State[T]) {
	b.update(gen, func(State[T]) State[T] { return s })
}

func (b *Binding[F, T]) update(gen uint64, fn func(State[T]) State[T]) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = fn(b.state)
	s, cb := b.state, b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}
