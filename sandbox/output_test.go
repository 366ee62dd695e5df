package sandbox

import (
	"strings"
	"testing"
)

func TestCappedBufferUnderCap(t *testing.T) {
	b := newCappedBuffer()
	b.Write([]byte("hello"))
	if b.String() != "hello" {
		t.Errorf("String() = %q, want %q", b.String(), "hello")
	}
	if b.Truncated() {
		t.Error("should not be truncated under cap")
	}
}

func TestCappedBufferTruncatesAtCap(t *testing.T) {
	b := newCappedBuffer()
	chunk := strings.Repeat("a", maxStreamBytes+10)
	b.Write([]byte(chunk))
	if !b.Truncated() {
		t.Error("expected truncation past the cap")
	}
	if !strings.HasSuffix(b.String(), truncationMarker) {
		t.Error("expected truncated output to end with the truncation marker")
	}
	if len(b.String()) > maxStreamBytes+len(truncationMarker) {
		t.Errorf("buffer grew past cap + marker: %d bytes", len(b.String()))
	}
}

func TestCappedBufferIgnoresWritesAfterTruncation(t *testing.T) {
	b := newCappedBuffer()
	b.Write([]byte(strings.Repeat("a", maxStreamBytes)))
	b.Write([]byte("overflow-1"))
	sizeAfterFirstOverflow := len(b.String())
	b.Write([]byte("overflow-2"))
	if len(b.String()) != sizeAfterFirstOverflow {
		t.Error("writes after truncation must not grow the buffer further")
	}
}
