package evring

import (
	"sync"
	"syscall"
	"time"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// fakeSQE records which prepare* call an operation made without touching
// a kernel. Good enough to exercise the registry, guard, and
// resubmission logic in loop_test.go.
type fakeSQE struct {
	userData uint64
	prepared string
}

func (f *fakeSQE) setUserData(id uint64) { f.userData = id }
func (f *fakeSQE) prepareClose(int32)    { f.prepared = "close" }
func (f *fakeSQE) prepareTimeout(*syscall.Timespec) {
	f.prepared = "timeout"
}
func (f *fakeSQE) prepareAccept(int32, *unix.RawSockaddrAny, *uint32) { f.prepared = "accept" }
func (f *fakeSQE) prepareConnect(int32, *unix.RawSockaddrAny, uint32) { f.prepared = "connect" }
func (f *fakeSQE) prepareRecv(int32, []byte)                          { f.prepared = "recv" }
func (f *fakeSQE) prepareSend(int32, []byte)                          { f.prepared = "send" }
func (f *fakeSQE) prepareOpenat(*byte, int, uint32)                   { f.prepared = "openat" }
func (f *fakeSQE) prepareRead(int32, []byte, uint64)                  { f.prepared = "read" }
func (f *fakeSQE) prepareWrite(int32, []byte, uint64)                 { f.prepared = "write" }
func (f *fakeSQE) prepareStatx(*byte, int, uint32, *unix.Statx_t)     { f.prepared = "statx" }

// fakeDriver is a ringDriver that keeps completions in a caller-fed
// queue instead of waiting on a kernel.
type fakeDriver struct {
	mu          sync.Mutex
	depth       int
	outstanding int
	submitCalls int
	completions []cqe
	closed      bool
}

func newFakeDriver(depth int) *fakeDriver {
	return &fakeDriver{depth: depth}
}

func (d *fakeDriver) getSQE() (sqe, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outstanding >= d.depth {
		return nil, false
	}
	d.outstanding++
	return &fakeSQE{}, true
}

func (d *fakeDriver) submit() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.outstanding
	d.outstanding = 0
	d.submitCalls++
	return n, nil
}

func (d *fakeDriver) waitCompletion(_ time.Duration) (cqe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.completions) == 0 {
		return cqe{}, errors.From(ErrWaitTimeout)
	}
	c := d.completions[0]
	d.completions = d.completions[1:]
	return c, nil
}

func (d *fakeDriver) seen() {}

func (d *fakeDriver) close() error {
	d.closed = true
	return nil
}

// complete injects a completion the next waitCompletion call will report.
func (d *fakeDriver) complete(id uint64, result int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completions = append(d.completions, cqe{id: id, result: result})
}
