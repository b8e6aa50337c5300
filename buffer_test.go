package evring_test

import (
	"testing"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/evring"
)

func TestBufferRefCounting(t *testing.T) {
	b := evring.Allocate(16)
	if got := b.UseCount(); got != 1 {
		t.Fatalf("UseCount after Allocate = %d, want 1", got)
	}

	c := b.Clone()
	if got := b.UseCount(); got != 2 {
		t.Fatalf("UseCount after Clone = %d, want 2", got)
	}

	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := b.UseCount(); got != 1 {
		t.Fatalf("UseCount after releasing clone = %d, want 1", got)
	}

	if err := b.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestBufferSliceSharesUseCount(t *testing.T) {
	b := evring.Allocate(32)
	defer b.Release()

	copy(b.Data(), "hello world, this is evring")

	s, err := b.Slice(6, 5)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	defer s.Release()

	if got := b.UseCount(); got != 2 {
		t.Fatalf("UseCount after Slice = %d, want 2", got)
	}
	if got := string(s.Data()); got != "world" {
		t.Fatalf("Slice data = %q, want %q", got, "world")
	}
}

func TestBufferSliceBounds(t *testing.T) {
	b := evring.Allocate(8)
	defer b.Release()

	cases := []struct {
		name   string
		offset int
		length int
	}{
		{"negative offset", -1, 1},
		{"negative length", 0, -1},
		{"offset past end", 9, 0},
		{"offset at exact end", 8, 0},
		{"length past end", 4, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := b.Slice(c.offset, c.length); !errors.Is(err, evring.ErrBadRange) {
				t.Fatalf("Slice(%d, %d) err = %v, want ErrBadRange", c.offset, c.length, err)
			}
		})
	}

	if s, err := b.Slice(7, 1); err != nil {
		t.Fatalf("Slice reaching the last valid byte: %v", err)
	} else {
		s.Release()
	}
}

func TestBufferClearZerosWholeRegion(t *testing.T) {
	b := evring.Allocate(8)
	defer b.Release()
	copy(b.Data(), "abcdefgh")

	view, err := b.Slice(2, 2)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	defer view.Release()

	view.Clear()

	for i, c := range b.Data() {
		if c != 0 {
			t.Fatalf("byte %d = %q, want zeroed after Clear via a sub-view", i, c)
		}
	}
}

func TestZeroBuffer(t *testing.T) {
	var b evring.Buffer
	if got := b.Size(); got != 0 {
		t.Fatalf("zero Buffer Size = %d, want 0", got)
	}
	if got := b.Data(); got != nil {
		t.Fatalf("zero Buffer Data = %v, want nil", got)
	}
	if got := b.UseCount(); got != 0 {
		t.Fatalf("zero Buffer UseCount = %d, want 0", got)
	}
	if err := b.Release(); err != nil {
		t.Fatalf("Release on zero Buffer: %v", err)
	}
}

func TestBufferFromString(t *testing.T) {
	b := evring.BufferFromString("payload")
	defer b.Release()

	if got := string(b.Data()); got != "payload" {
		t.Fatalf("BufferFromString data = %q, want %q", got, "payload")
	}
}
