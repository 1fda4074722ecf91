package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrAlreadyPublished is returned by Publish when the slot already holds a value.
	ErrAlreadyPublished = errors.New("registry: value already published")

	// ErrNotPublished is returned by Acquire before anything was published.
	ErrNotPublished = errors.New("registry: value not yet published")

	// ErrAcquisitionTimeout is returned when every retry attempt found the slot empty.
	ErrAcquisitionTimeout = errors.New("registry: acquisition timed out")
)

// Accessor is the zero-argument read function handed across module
// boundaries. It never blocks.
type Accessor[T any] func() (T, error)

// Registry is a single-assignment slot. It holds at most one value, which is
// never replaced or cleared once published.
//
// The zero value is an empty registry ready for use. A Registry must not be
// copied after first use.
type Registry[T any] struct {
	value atomic.Pointer[T]

	once  sync.Once
	ready chan struct{}
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

func (r *Registry[T]) init() {
	r.once.Do(func() {
		r.ready = make(chan struct{})
	})
}

// Ready returns a channel that is closed once a value has been published.
func (r *Registry[T]) Ready() <-chan struct{} {
	r.init()
	return r.ready
}

// Publish stores v. Only the first call succeeds; later calls leave the slot
// untouched and return ErrAlreadyPublished.
func (r *Registry[T]) Publish(v T) error {
	r.init()

	if !r.value.CompareAndSwap(nil, &v) {
		return ErrAlreadyPublished
	}
	close(r.ready)
	return nil
}

// Published reports whether a value is present.
func (r *Registry[T]) Published() bool {
	return r.value.Load() != nil
}

// Acquire returns the published value, or ErrNotPublished. It never waits.
func (r *Registry[T]) Acquire() (T, error) {
	if p := r.value.Load(); p != nil {
		return *p, nil
	}
	var zero T
	return zero, ErrNotPublished
}

// AcquireWithRetry calls Acquire up to maxAttempts times, waiting interval
// between attempts. A publish during a wait ends the wait early. There is no
// wait after the last attempt, so an empty slot fails after
// (maxAttempts-1)*interval with ErrAcquisitionTimeout. maxAttempts below 1 is
// treated as 1.
func (r *Registry[T]) AcquireWithRetry(ctx context.Context, maxAttempts int, interval time.Duration) (T, error) {
	return retry(ctx, r.Acquire, maxAttempts, interval, r.Ready())
}

// Await blocks until a value is published or ctx is done. It returns
// immediately when the value is already present.
func (r *Registry[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-r.Ready():
		return r.Acquire()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Accessor returns the read function to expose to consumers.
func (r *Registry[T]) Accessor() Accessor[T] {
	return r.Acquire
}
