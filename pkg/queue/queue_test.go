package queue

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"dominicbreuker/tlsduplex/pkg/ioerr"
)

func newSmall(t *testing.T, high, low int) *Queue {
	t.Helper()

	q, err := NewWithWatermarks(high, low)
	if err != nil {
		t.Fatalf("NewWithWatermarks(%d, %d): %v", high, low, err)
	}
	return q
}

// waitBlocked fails the test if done is closed within d.
func waitBlocked(t *testing.T, done <-chan struct{}, d time.Duration, what string) {
	t.Helper()

	select {
	case <-done:
		t.Fatalf("%s returned, want it to block", what)
	case <-time.After(d):
	}
}

// waitDone fails the test if done is not closed within d.
func waitDone(t *testing.T, done <-chan struct{}, d time.Duration, what string) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s still blocked after %v", what, d)
	}
}

func TestNewWithWatermarks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		high    int
		low     int
		wantErr bool
	}{
		{"defaults", DefaultHighWatermark, DefaultLowWatermark, false},
		{"low zero", 2, 0, false},
		{"low equals high", 4, 4, true},
		{"low above high", 2, 4, true},
		{"negative low", 4, -1, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q, err := NewWithWatermarks(tc.high, tc.low)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewWithWatermarks(%d, %d) error = %v, wantErr %v", tc.high, tc.low, err, tc.wantErr)
			}
			if err == nil && (q.HighWatermark() != tc.high || q.LowWatermark() != tc.low) {
				t.Errorf("watermarks = (%d, %d), want (%d, %d)", q.HighWatermark(), q.LowWatermark(), tc.high, tc.low)
			}
		})
	}
}

func TestPushPop_FIFO(t *testing.T) {
	t.Parallel()

	q := New()
	inputs := [][]byte{[]byte("a"), []byte("bc"), {}, []byte("def")}
	for _, in := range inputs {
		if err := q.Push(in); err != nil {
			t.Fatalf("Push(%q): %v", in, err)
		}
	}

	if q.Len() != len(inputs) {
		t.Fatalf("Len() = %d, want %d", q.Len(), len(inputs))
	}

	for i, want := range inputs {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop() #%d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Pop() #%d = %q, want %q", i, got, want)
		}
	}
}

func TestPush_BlocksAtHighWatermark(t *testing.T) {
	t.Parallel()

	q := newSmall(t, 2, 1)
	for i := 0; i < 2; i++ {
		if err := q.Push([]byte{byte(i)}); err != nil {
			t.Fatalf("Push #%d: %v", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := q.Push([]byte{2}); err != nil {
			t.Errorf("blocked Push: %v", err)
		}
	}()

	waitBlocked(t, done, 50*time.Millisecond, "Push above high watermark")

	if _, err := q.Pop(); err != nil {
		t.Fatalf("Pop(): %v", err)
	}
	waitDone(t, done, time.Second, "Push after Pop")

	if got := q.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestPush_NeverExceedsHighWatermark(t *testing.T) {
	t.Parallel()

	const high = 4
	q := newSmall(t, high, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxSeen := 0

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := q.Push([]byte{1}); err != nil {
					t.Errorf("Push: %v", err)
					return
				}
				n := q.Len()
				mu.Lock()
				if n > maxSeen {
					maxSeen = n
				}
				mu.Unlock()
			}
		}()
	}

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for i := 0; i < 200; i++ {
			if _, err := q.Pop(); err != nil {
				t.Errorf("Pop: %v", err)
				return
			}
		}
	}()

	wg.Wait()
	waitDone(t, consumed, 5*time.Second, "consumer")

	if maxSeen > high {
		t.Errorf("observed length %d, want <= %d", maxSeen, high)
	}
}

func TestTryPop(t *testing.T) {
	t.Parallel()

	q := New()

	chunk, ok, err := q.TryPop()
	if err != nil || ok || chunk != nil {
		t.Fatalf("TryPop() on empty = (%v, %v, %v), want (nil, false, nil)", chunk, ok, err)
	}

	if err := q.Push([]byte("x")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	chunk, ok, err = q.TryPop()
	if err != nil || !ok || string(chunk) != "x" {
		t.Fatalf("TryPop() = (%q, %v, %v), want (\"x\", true, nil)", chunk, ok, err)
	}

	q.Kill()
	_, ok, err = q.TryPop()
	if ok || !ioerr.IsBrokenPipe(err) {
		t.Fatalf("TryPop() on dead = (%v, %v), want (false, broken pipe)", ok, err)
	}
}

func TestPop_DrainsBeforeDeath(t *testing.T) {
	t.Parallel()

	q := New()
	if err := q.Push([]byte("last")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := q.Push([]byte{}); err != nil {
		t.Fatalf("Push(sentinel): %v", err)
	}
	q.Kill()

	got, err := q.Pop()
	if err != nil || string(got) != "last" {
		t.Fatalf("Pop() = (%q, %v), want (\"last\", nil)", got, err)
	}
	got, err = q.Pop()
	if err != nil || len(got) != 0 {
		t.Fatalf("Pop() = (%q, %v), want empty sentinel", got, err)
	}
	if _, err := q.Pop(); !ioerr.IsBrokenPipe(err) {
		t.Fatalf("Pop() on dead empty queue error = %v, want broken pipe", err)
	}
}

func TestFrontAdvance(t *testing.T) {
	t.Parallel()

	q := New()
	if err := q.Push([]byte("one")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	head, err := q.Front()
	if err != nil || string(head) != "one" {
		t.Fatalf("Front() = (%q, %v), want (\"one\", nil)", head, err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after Front = %d, want 1", q.Len())
	}

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		if err := q.FlushZero(); err != nil {
			t.Errorf("FlushZero: %v", err)
		}
	}()
	waitBlocked(t, flushed, 50*time.Millisecond, "FlushZero before Advance")

	q.Advance()
	waitDone(t, flushed, time.Second, "FlushZero after Advance")

	q.Advance() // no-op on empty queue
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestAwaitPop_ReleasesHeldLock(t *testing.T) {
	t.Parallel()

	q := New()
	var engine sync.Mutex
	engine.Lock()

	done := make(chan error, 1)
	go func() {
		done <- q.AwaitPop(&engine, 0)
	}()

	// the engine lock must become available while AwaitPop sleeps
	locked := make(chan struct{})
	go func() {
		engine.Lock()
		close(locked)
		engine.Unlock()
	}()
	waitDone(t, locked, time.Second, "engine.Lock while AwaitPop waits")

	if err := q.Push([]byte("data")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AwaitPop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitPop did not return after Push")
	}

	if q.Len() != 1 {
		t.Errorf("Len() = %d, AwaitPop must not consume", q.Len())
	}
}

func TestAwaitPop_Timeout(t *testing.T) {
	t.Parallel()

	q := New()
	var held sync.Mutex
	held.Lock()

	const timeout = 100 * time.Millisecond
	start := time.Now()
	err := q.AwaitPop(&held, timeout)
	elapsed := time.Since(start)

	if !ioerr.IsTimedOut(err) {
		t.Fatalf("AwaitPop() error = %v, want timed out", err)
	}
	if elapsed < timeout || elapsed > timeout+400*time.Millisecond {
		t.Errorf("AwaitPop took %v; want ~%v", elapsed, timeout)
	}
}

func TestAwaitPop_ReturnsWhenNonEmptyAndDead(t *testing.T) {
	t.Parallel()

	q := New()
	if err := q.Push([]byte("x")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	q.Kill()

	var held sync.Mutex
	held.Lock()
	if err := q.AwaitPop(&held, 0); err != nil {
		t.Fatalf("AwaitPop() = %v, want nil while data is left", err)
	}
}

func TestFlushLow(t *testing.T) {
	t.Parallel()

	q := newSmall(t, 8, 2)
	for i := 0; i < 4; i++ {
		if err := q.Push([]byte{byte(i)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := q.FlushLow(0); err != nil {
			t.Errorf("FlushLow: %v", err)
		}
		if n := q.Len(); n > 2 {
			t.Errorf("FlushLow returned with Len() = %d, want <= 2", n)
		}
	}()

	waitBlocked(t, done, 50*time.Millisecond, "FlushLow above low watermark")
	for i := 0; i < 2; i++ {
		if _, err := q.Pop(); err != nil {
			t.Fatalf("Pop: %v", err)
		}
	}
	waitDone(t, done, time.Second, "FlushLow")
}

func TestFlushLow_Timeout(t *testing.T) {
	t.Parallel()

	q := newSmall(t, 4, 0)
	if err := q.Push([]byte("stuck")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	const timeout = 80 * time.Millisecond
	start := time.Now()
	err := q.FlushLow(timeout)
	elapsed := time.Since(start)

	if !ioerr.IsTimedOut(err) {
		t.Fatalf("FlushLow() error = %v, want timed out", err)
	}
	if elapsed < timeout {
		t.Errorf("FlushLow returned after %v, want >= %v", elapsed, timeout)
	}
}

func TestKill_ReleasesAllWaiters(t *testing.T) {
	t.Parallel()

	full := newSmall(t, 1, 0)
	if err := full.Push([]byte("x")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	empty := New()
	var held sync.Mutex

	waiters := map[string]func() error{
		"Push":      func() error { return full.Push([]byte("y")) },
		"FlushLow":  func() error { return full.FlushLow(0) },
		"FlushZero": func() error { return full.FlushZero() },
		"Pop":       func() error { _, err := empty.Pop(); return err },
		"Front":     func() error { _, err := empty.Front(); return err },
		"AwaitPop":  func() error { held.Lock(); return empty.AwaitPop(&held, 0) },
	}

	errs := make(chan error, len(waiters))
	for name, fn := range waiters {
		name, fn := name, fn
		go func() {
			err := fn()
			if !ioerr.IsBrokenPipe(err) {
				t.Errorf("%s error = %v, want broken pipe", name, err)
			}
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	full.Kill()
	empty.Kill()
	empty.Kill() // idempotent

	for i := 0; i < len(waiters); i++ {
		select {
		case <-errs:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d waiters released after Kill", i, len(waiters))
		}
	}

	// dead is permanent
	if !empty.Dead() || !full.Dead() {
		t.Fatal("Dead() = false after Kill")
	}
	if err := empty.Push([]byte("z")); !ioerr.IsBrokenPipe(err) {
		t.Errorf("Push after Kill error = %v, want broken pipe", err)
	}
	if err := empty.FlushZero(); !ioerr.IsBrokenPipe(err) {
		t.Errorf("FlushZero after Kill error = %v, want broken pipe", err)
	}
	if err := empty.FlushLow(time.Second); !ioerr.IsBrokenPipe(err) {
		t.Errorf("FlushLow after Kill error = %v, want broken pipe", err)
	}
}
