package evring

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// cqe is a single completion the ring driver reports: the operation id
// tagged on the slot at submission time and the kernel's signed result
// code (negative on failure).
type cqe struct {
	id     uint64
	result int32
}

// sqe is a submission-queue slot, narrowed to exactly the encode
// operations evring's operation kinds need. It is the facade the design
// calls out as opaque: the rest of the runtime never touches a kernel
// type directly.
type sqe interface {
	setUserData(id uint64)
	prepareClose(fd int32)
	prepareTimeout(ts *syscall.Timespec)
	prepareAccept(fd int32, addr *unix.RawSockaddrAny, addrLen *uint32)
	prepareConnect(fd int32, addr *unix.RawSockaddrAny, addrLen uint32)
	prepareRecv(fd int32, buf []byte)
	prepareSend(fd int32, buf []byte)
	prepareOpenat(path *byte, flags int, mode uint32)
	prepareRead(fd int32, buf []byte, offset uint64)
	prepareWrite(fd int32, buf []byte, offset uint64)
	prepareStatx(path *byte, flags int, mask uint32, out *unix.Statx_t)
}

// ringDriver is the facade over the kernel ring (C4/C6 of the design): a
// place to acquire a submission slot, flush pending slots, and wait for
// one completion at a time. It is an interface so the registry, guard,
// and resubmission logic can be exercised without a real kernel.
type ringDriver interface {
	// getSQE returns a fresh submission slot, or ok=false if the ring's
	// submission queue is full.
	getSQE() (sqe, bool)
	// submit flushes every prepared-but-unsubmitted slot to the kernel,
	// returning the number of slots submitted.
	submit() (int, error)
	// waitCompletion blocks for at most timeout for a single completion.
	// It returns ErrWaitTimeout, wrapped, if none arrives in time.
	waitCompletion(timeout time.Duration) (cqe, error)
	// seen marks the most recently returned completion as consumed,
	// freeing its slot in the completion queue.
	seen()
	// close releases the ring, implicitly cancelling in-flight work.
	close() error
}
