package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDoRunsFunction(t *testing.T) {
	p := New(2)
	ran := false
	err := p.Do(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("fn did not run")
	}
}

func TestDoPropagatesError(t *testing.T) {
	p := New(1)
	want := errors.New("call failed")
	if err := p.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestDoBoundsConcurrency(t *testing.T) {
	const size = 3
	p := New(size)

	var inFlight, peak int64
	var wg sync.WaitGroup
	gate := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Do(context.Background(), func() error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				<-gate
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}

	close(gate)
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > size {
		t.Errorf("peak concurrency %d exceeds pool size %d", got, size)
	}
}

func TestDoCancelledContext(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	held := make(chan struct{})

	go p.Do(context.Background(), func() error {
		close(held)
		<-release
		return nil
	})
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func() error {
		t.Error("fn must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(release)
}

func TestNewDefaultsSize(t *testing.T) {
	if p := New(0); p == nil {
		t.Fatal("nil pool")
	}
	if p := New(-3); p == nil {
		t.Fatal("nil pool")
	}
}
