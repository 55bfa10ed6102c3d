package scanner

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// collector captures submitted scans for assertions.
type collector struct {
	mu    sync.Mutex
	scans []string
	ch    chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 8)}
}

func (c *collector) submit(s string) {
	c.mu.Lock()
	c.scans = append(c.scans, s)
	c.mu.Unlock()
	c.ch <- s
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.scans))
	copy(out, c.scans)
	return out
}

// typeCode replays key codes the way a scanner emits them: shift held for
// letters (uppercase barcodes), released for everything else.
func typeCode(b *Buffer, codes ...string) {
	for _, code := range codes {
		b.Key(code, strings.HasPrefix(code, "Key"))
	}
}

func TestBufferEnterSubmits(t *testing.T) {
	c := newCollector()
	b := NewBuffer(time.Hour, c.submit) // huge window: only Enter can flush
	defer b.Close()

	typeCode(b, "KeyM", "Digit1", "Digit0", "Digit0", "Enter")

	select {
	case got := <-c.ch:
		if got != "M100" {
			t.Errorf("submitted %q, want M100", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Enter did not submit")
	}
}

func TestBufferDebounceSubmits(t *testing.T) {
	c := newCollector()
	b := NewBuffer(20*time.Millisecond, c.submit)
	defer b.Close()

	typeCode(b, "KeyA", "KeyB", "KeyC")

	select {
	case got := <-c.ch:
		if got != "ABC" {
			t.Errorf("submitted %q, want ABC", got)
		}
	case <-time.After(time.Second):
		t.Fatal("debounce did not fire")
	}
}

func TestBufferShortInputNotDebounced(t *testing.T) {
	c := newCollector()
	b := NewBuffer(10*time.Millisecond, c.submit)
	defer b.Close()

	typeCode(b, "KeyA", "KeyB") // below the minimum length

	select {
	case got := <-c.ch:
		t.Fatalf("unexpected submission %q", got)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestBufferBackspace(t *testing.T) {
	c := newCollector()
	b := NewBuffer(time.Hour, c.submit)
	defer b.Close()

	typeCode(b, "KeyA", "KeyB", "KeyX", "Backspace", "KeyC", "Enter")

	select {
	case got := <-c.ch:
		if got != "ABC" {
			t.Errorf("submitted %q, want ABC", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no submission")
	}
}

func TestBufferEmptyEnterNoop(t *testing.T) {
	c := newCollector()
	b := NewBuffer(time.Hour, c.submit)
	defer b.Close()

	typeCode(b, "Enter", "Enter")

	select {
	case got := <-c.ch:
		t.Fatalf("unexpected submission %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBufferCloseCancelsPending(t *testing.T) {
	c := newCollector()
	b := NewBuffer(30*time.Millisecond, c.submit)

	typeCode(b, "KeyA", "KeyB", "KeyC")
	b.Close()

	select {
	case got := <-c.ch:
		t.Fatalf("submission after Close: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBufferCoalescesBurst(t *testing.T) {
	// one burst followed by Enter must yield exactly one submission
	c := newCollector()
	b := NewBuffer(time.Hour, c.submit)
	defer b.Close()

	typeCode(b, "KeyM", "KeyA", "KeyI", "KeyN", "KeyT", "Minus", "Digit1", "Enter")

	<-c.ch
	time.Sleep(30 * time.Millisecond)
	if got := c.all(); len(got) != 1 {
		t.Fatalf("expected one submission, got %v", got)
	}
}
