package datasource

import "context"

// DefaultMaxConcurrentRequests bounds backend concurrency when the source
// configuration does not set a limit.
const DefaultMaxConcurrentRequests = 8

// Semaphore is the per-source concurrency gate. Queries and schema
// profiling share one instance, so total simultaneously open backend
// operations never exceed the configured ceiling.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a gate with the given ceiling; values <= 0 fall
// back to DefaultMaxConcurrentRequests.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = DefaultMaxConcurrentRequests
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or the context is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
