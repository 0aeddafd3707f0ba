package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"libradesk/internal/storage"
)

// ErrInjected is returned by a FaultyKV call that a fault selected.
var ErrInjected = errors.New("injected fault")

// Operations a Fault can target.
const (
	OpGet = "get"
	OpPut = "put"
)

// Fault describes a disturbance on a backend call. Key "" matches every key.
// The first After matching calls pass through; later ones are delayed by
// Latency and, when Fail is set, fail with Err (ErrInjected if nil).
type Fault struct {
	Op      string
	Key     string
	After   int
	Latency time.Duration
	Fail    bool
	Err     error
}

type activeFault struct {
	Fault
	seen int
}

// FaultyKV wraps a backend and applies the injected faults to its calls.
type FaultyKV struct {
	inner storage.KV

	mu     sync.Mutex
	faults []*activeFault
}

// NewFaultyKV wraps inner with no faults active.
func NewFaultyKV(inner storage.KV) *FaultyKV {
	return &FaultyKV{inner: inner}
}

// Inner returns the wrapped backend.
func (f *FaultyKV) Inner() storage.KV {
	return f.inner
}

// Inject activates fault.
func (f *FaultyKV) Inject(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &activeFault{Fault: fault})
}

// Clear removes every fault.
func (f *FaultyKV) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// apply returns the delay and error the active faults impose on a call.
func (f *FaultyKV) apply(op, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		delay time.Duration
		err   error
	)
	for _, fault := range f.faults {
		if fault.Op != op || (fault.Key != "" && fault.Key != key) {
			continue
		}
		fault.seen++
		if fault.seen <= fault.After {
			continue
		}
		delay += fault.Latency
		if fault.Fail && err == nil {
			err = fault.Err
			if err == nil {
				err = ErrInjected
			}
			err = fmt.Errorf("%s %s: %w", op, key, err)
		}
	}
	return delay, err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *FaultyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	delay, err := f.apply(OpGet, key)
	if werr := wait(ctx, delay); werr != nil {
		return nil, false, werr
	}
	if err != nil {
		return nil, false, err
	}
	return f.inner.Get(ctx, key)
}

func (f *FaultyKV) Put(ctx context.Context, key string, data []byte) error {
	delay, err := f.apply(OpPut, key)
	if werr := wait(ctx, delay); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	return f.inner.Put(ctx, key, data)
}

func (f *FaultyKV) Close() error {
	return f.inner.Close()
}
