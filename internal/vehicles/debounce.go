package vehicles

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
)

// DefaultDebounce is the pause after the last keystroke before a VIN is decoded.
const DefaultDebounce = 500 * time.Millisecond

// ErrSuperseded is returned to a caller whose pending call was replaced by a newer one for the same key.
var ErrSuperseded = pkgerrors.New(pkgerrors.CodeSuperseded, "superseded by a newer request")

// Debouncer delays work per key and lets only the latest call for a key run.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewDebouncer returns a debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay, pending: map[string]chan struct{}{}}
}

// Do waits out the delay and runs fn, unless a newer Do for key arrives first.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	superseded := make(chan struct{})

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		close(prev)
	}
	d.pending[key] = superseded
	d.mu.Unlock()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-superseded:
		return ErrSuperseded
	case <-ctx.Done():
		d.release(key, superseded)
		return ctx.Err()
	case <-timer.C:
	}

	d.mu.Lock()
	select {
	case <-superseded:
		d.mu.Unlock()
		return ErrSuperseded
	default:
	}
	delete(d.pending, key)
	d.mu.Unlock()

	return fn(ctx)
}

func (d *Debouncer) release(key string, ch chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.pending[key]; ok && cur == ch {
		delete(d.pending, key)
	}
}
