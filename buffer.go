package evring

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/evring/pkg/reference"
)

// bufferData is the pooled, kernel-stable backing store a Buffer views.
// It never moves once allocated: io_uring holds a raw pointer into it for
// the lifetime of a read or write operation.
type bufferData struct {
	buf []byte
}

func (d *bufferData) Close() error {
	putBufferData(d)
	return nil
}

// Buffer is a reference-counted, sliceable view over a fixed region of
// memory. Copying a Buffer (Clone) shares the underlying region and bumps
// its use count; the region is returned to the pool once the last handle
// is released. This is evring's Go-idiomatic stand-in for the original
// runtime's copy-on-assign, refcounted BufferData: since Go has no
// destructors, every owner of a Buffer must call Release explicitly when
// it is done with it.
type Buffer struct {
	ptr    *reference.Pointer[*bufferData]
	offset int
	length int
}

// Allocate returns a new Buffer backed by size bytes of zeroed memory,
// already holding one live reference.
func Allocate(size int) Buffer {
	data := getBufferData(size)
	ptr := reference.Make[*bufferData](data)
	ptr.Value()
	return Buffer{ptr: ptr, offset: 0, length: size}
}

// BufferFromString returns a new Buffer holding a copy of s.
func BufferFromString(s string) Buffer {
	b := Allocate(len(s))
	copy(b.Data(), s)
	return b
}

// Clone returns a new handle onto the same underlying region, incrementing
// its use count. The zero Buffer clones to itself.
func (b Buffer) Clone() Buffer {
	if b.ptr == nil {
		return b
	}
	b.ptr.Value()
	return b
}

// Release drops this handle's reference. Once the last handle is released
// the underlying region is returned to the pool. Callers must not use b
// after calling Release.
func (b Buffer) Release() error {
	if b.ptr == nil {
		return nil
	}
	return b.ptr.Close()
}

// Size returns the length of the current view.
func (b Buffer) Size() int {
	return b.length
}

// Data returns the current view as a byte slice. It is nil for the zero
// Buffer.
func (b Buffer) Data() []byte {
	if b.ptr == nil {
		return nil
	}
	return b.ptr.Peek().buf[b.offset : b.offset+b.length]
}

// Clear zeros the whole underlying region, not just the current view.
func (b Buffer) Clear() {
	if b.ptr == nil {
		return
	}
	buf := b.ptr.Peek().buf
	for i := range buf {
		buf[i] = 0
	}
}

// UseCount reports the number of live handles onto the underlying region.
func (b Buffer) UseCount() int64 {
	if b.ptr == nil {
		return 0
	}
	return b.ptr.Count()
}

// Slice returns a new Buffer viewing [offset, offset+length) of the
// current view, incrementing the underlying region's use count. Unlike
// the original implementation's absolute-offset slicing, offset is
// relative to b's own view, matching Go's []byte slicing convention.
func (b Buffer) Slice(offset, length int) (Buffer, error) {
	if b.ptr == nil || offset < 0 || length < 0 || offset >= b.length || offset+length > b.length {
		return Buffer{}, errors.From(ErrBadRange, errors.WithMeta("offset", offset), errors.WithMeta("length", length))
	}
	b.ptr.Value()
	return Buffer{ptr: b.ptr, offset: b.offset + offset, length: length}, nil
}
