package scanner

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet window after the last keystroke before an
// unfinished burst is submitted. Hardware scanners emit keys well under
// 50ms apart, so anything past this gap is the end of a scan.
const DefaultDebounce = 300 * time.Millisecond

// minScanLen is the shortest buffer the debounce timer will submit.
// Explicit Enter submits regardless.
const minScanLen = 3

// Buffer coalesces a burst of scanner keystrokes into one logical scan.
// Characters accumulate until an Enter signal, or until the debounce
// window elapses after the last keystroke once the buffer holds at least
// minScanLen characters. The submit callback receives the normalized scan
// and is never invoked while the buffer's lock is held.
type Buffer struct {
	mu     sync.Mutex
	buf    []rune
	timer  *time.Timer
	window time.Duration
	submit func(string)
	closed bool
}

// NewBuffer returns a buffer submitting completed scans to submit.
// A window of 0 selects DefaultDebounce.
func NewBuffer(window time.Duration, submit func(string)) *Buffer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Buffer{window: window, submit: submit}
}

// Key feeds one physical key event into the buffer.
func (b *Buffer) Key(code string, shift bool) {
	r, sig, ok := LatinKey(code, shift)
	if !ok {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	var scan string
	switch sig {
	case SignalEnter:
		scan = b.takeLocked()
	case SignalBackspace:
		if len(b.buf) > 0 {
			b.buf = b.buf[:len(b.buf)-1]
		}
		b.rearmLocked()
	default:
		b.buf = append(b.buf, r)
		b.rearmLocked()
	}
	b.mu.Unlock()

	if scan != "" && b.submit != nil {
		b.submit(scan)
	}
}

// Flush submits whatever is buffered, bypassing the debounce timer.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	scan := b.takeLocked()
	b.mu.Unlock()

	if scan != "" && b.submit != nil {
		b.submit(scan)
	}
}

// Close discards the buffer and guarantees no further submissions.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopTimerLocked()
	b.buf = nil
}

func (b *Buffer) timeout() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	scan := b.takeLocked()
	b.mu.Unlock()

	if scan != "" && b.submit != nil {
		b.submit(scan)
	}
}

// rearmLocked resets the debounce timer; it only arms once the buffer is
// long enough to be a plausible scan. Caller holds b.mu.
func (b *Buffer) rearmLocked() {
	b.stopTimerLocked()
	if len(b.buf) >= minScanLen {
		b.timer = time.AfterFunc(b.window, b.timeout)
	}
}

// takeLocked drains the buffer and returns the normalized scan, which may
// be empty. Caller holds b.mu.
func (b *Buffer) takeLocked() string {
	b.stopTimerLocked()
	if len(b.buf) == 0 {
		return ""
	}
	scan := Normalize(string(b.buf))
	b.buf = b.buf[:0]
	return scan
}

func (b *Buffer) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
