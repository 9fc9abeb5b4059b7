// Package realtime turns point-in-time store queries into live subscriptions.
//
// A subscription re-runs its query whenever its collection is written through
// this process (see Notify) and on a fixed poll interval, which catches writes
// made by the ingestion pipeline. Only results that differ from the last
// delivery are pushed to the subscriber.
package realtime

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

// Collection names a live collection.
type Collection string

const (
	SensorReadings Collection = "sensor_readings"
	Alerts         Collection = "alerts"
	Thresholds     Collection = "thresholds"
)

// Feed fans out change notifications to live subscriptions.
type Feed struct {
	interval time.Duration

	mu   sync.Mutex
	subs map[Collection]map[*subscription]struct{}
}

type subscription struct {
	wake chan struct{}
}

// NewFeed creates a feed that polls every interval in addition to local notifications.
// A non-positive interval disables polling.
func NewFeed(interval time.Duration) *Feed {
	return &Feed{
		interval: interval,
		subs:     make(map[Collection]map[*subscription]struct{}),
	}
}

// Notify wakes every live subscription on the collection.
func (f *Feed) Notify(c Collection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[c] {
		select {
		case s.wake <- struct{}{}:
		default:
			// a wake-up is already pending
		}
	}
}

// Active returns the number of live subscriptions on the collection.
func (f *Feed) Active(c Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[c])
}

func (f *Feed) add(c Collection, s *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[c] == nil {
		f.subs[c] = make(map[*subscription]struct{})
	}
	f.subs[c][s] = struct{}{}
}

func (f *Feed) remove(c Collection, s *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[c], s)
}

// FetchFunc runs the subscription's query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Subscribe starts a live subscription on collection c.
//
// onNext receives the first result and then every result that differs from
// the previous one. onErr receives the first fetch error, after which the
// subscription is dead and no further callbacks happen. Callbacks run on the
// subscription's goroutine, one at a time, and must not call cancel.
//
// cancel is idempotent and returns only once the subscription goroutine has
// exited, so no callback runs after it returns.
func Subscribe[T any](ctx context.Context, f *Feed, c Collection, fetch FetchFunc[T], onNext func(T), onErr func(error)) (cancel func()) {
	ctx, stop := context.WithCancel(ctx)
	s := &subscription{wake: make(chan struct{}, 1)}
	done := make(chan struct{})
	f.add(c, s)

	go func() {
		defer close(done)
		defer f.remove(c, s)

		var ticker *time.Ticker
		var tick <-chan time.Time
		if f.interval > 0 {
			ticker = time.NewTicker(f.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		var last uint64
		delivered := false
		for {
			result, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Printf("realtime: subscription on %s failed: %v", c, err)
				if onErr != nil {
					onErr(err)
				}
				return
			}

			sum, err := fingerprint(result)
			if err != nil {
				// Cannot compare, deliver unconditionally.
				delivered = false
			}
			if !delivered || sum != last {
				last = sum
				delivered = err == nil
				onNext(result)
			}

			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			case <-tick:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(stop)
		<-done
	}
}

func fingerprint(v any) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64(), nil
}
