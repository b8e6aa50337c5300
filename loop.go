package evring

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/evring/pkg/kernel"
)

// Option configures an EventLoop at construction.
type Option func(*loopConfig)

type loopConfig struct {
	depth        uint32
	wakeInterval time.Duration
}

// WithDepth sets the ring's submission/completion queue depth. Default 256.
func WithDepth(depth uint32) Option {
	return func(c *loopConfig) { c.depth = depth }
}

// WithWakeInterval sets how long the run loop waits for a completion
// before draining the dispatch queue and checking the stop signal.
// Default 500ms.
func WithWakeInterval(d time.Duration) Option {
	return func(c *loopConfig) { c.wakeInterval = d }
}

// EventLoop owns the ring, the operation registry, and the cross-thread
// dispatch queue. It drives the completion loop and routes completions to
// handlers. The zero value is not usable; construct with New.
type EventLoop struct {
	driver ringDriver

	nextID   uint64
	registry map[uint64]operation

	dispatchMu sync.Mutex
	dispatched []func(*EventLoop)

	wakeInterval time.Duration
	stopped      atomic.Bool
	closed       atomic.Bool
}

// New constructs an EventLoop and initialises its ring. The loop is not
// copyable: pass it by pointer.
func New(opts ...Option) (*EventLoop, error) {
	cfg := loopConfig{depth: 256, wakeInterval: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	v, err := kernel.Get()
	if err != nil {
		return nil, setupError("kernel_version", err)
	}
	if !v.GTE(kernel.MinimumForRing.Major, kernel.MinimumForRing.Minor, kernel.MinimumForRing.Patch) {
		return nil, setupError("kernel_version", errors.New("evring: kernel too old for io_uring",
			errors.WithMeta("have", v.String()), errors.WithMeta("want", kernel.MinimumForRing.String())))
	}
	driver, err := newRingDriver(cfg.depth)
	if err != nil {
		return nil, err
	}
	return &EventLoop{
		driver:       driver,
		registry:     make(map[uint64]operation),
		wakeInterval: cfg.wakeInterval,
	}, nil
}

// Close releases the ring. It implicitly cancels any in-flight kernel
// work; outstanding operation records are simply dropped, not drained.
// Submission methods called after Close return ErrClosed.
func (l *EventLoop) Close() error {
	l.closed.Store(true)
	return l.driver.close()
}

// newLoopWithDriver builds an EventLoop around a caller-supplied ring
// driver, bypassing ring initialisation. Used by tests to exercise the
// registry, guard, and resubmission logic against a fake ring.
func newLoopWithDriver(driver ringDriver, wakeInterval time.Duration) *EventLoop {
	return &EventLoop{
		driver:       driver,
		registry:     make(map[uint64]operation),
		wakeInterval: wakeInterval,
	}
}

func (l *EventLoop) allocID() uint64 {
	l.nextID++
	return l.nextID
}

func (l *EventLoop) requestStop() { l.stopped.Store(true) }

func (l *EventLoop) stopRequested() bool { return l.stopped.Load() }

// Run repeats the completion loop until Stop is requested (directly, or
// via an EventContext handed to a handler). See §4.6: wait for one
// completion with a timeout, dispatch it, drain the cross-thread queue,
// repeat.
func (l *EventLoop) Run() error {
	for !l.stopRequested() {
		if err := l.tick(); err != nil {
			return err
		}
	}
	return nil
}

// Stop requests the loop exit at its next wake-up. Safe to call from any
// thread; callers off the loop thread should prefer Dispatch(func(l)
// { l.Stop() }) for well-defined ordering against in-flight completions.
func (l *EventLoop) Stop() { l.requestStop() }

func (l *EventLoop) tick() error {
	c, err := l.driver.waitCompletion(l.wakeInterval)
	if err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			l.drainDispatch()
			return nil
		}
		return err
	}

	if op, ok := l.registry[c.id]; ok {
		ctx := EventContext{Loop: l, Result: c.result}
		wantResubmit := op.handle(ctx)
		resubmit := op.repeating() && wantResubmit
		if resubmit && op.needsPositiveResult() && c.result <= 0 {
			resubmit = false
		}
		if resubmit {
			l.resubmit(op)
		} else {
			delete(l.registry, op.id())
			op.release()
		}
	}
	l.driver.seen()
	l.drainDispatch()
	return nil
}

func (l *EventLoop) resubmit(op operation) {
	op.prepareResubmit()
	slot, ok := l.driver.getSQE()
	if !ok {
		delete(l.registry, op.id())
		op.release()
		return
	}
	op.encode(slot)
	slot.setUserData(op.id())
	if _, err := l.driver.submit(); err != nil {
		delete(l.registry, op.id())
		op.release()
	}
}

// Dispatch enqueues callback to run on the loop's thread at the next
// drain point. Together with Stop, it is the only method on EventLoop safe
// to call from a thread other than the one running Run.
func (l *EventLoop) Dispatch(callback func(*EventLoop)) {
	l.dispatchMu.Lock()
	l.dispatched = append(l.dispatched, callback)
	l.dispatchMu.Unlock()
}

func (l *EventLoop) drainDispatch() {
	l.dispatchMu.Lock()
	pending := l.dispatched
	l.dispatched = nil
	l.dispatchMu.Unlock()

	for _, cb := range pending {
		cb(l)
	}
}

// submit runs the submission facade (§4.4): register the record, acquire
// a slot, encode, tag with the operation id, and either submit
// immediately or defer to guard.
func (l *EventLoop) submit(op operation, guard *SubmitGuard) error {
	if l.closed.Load() {
		return errors.From(ErrClosed)
	}
	l.registry[op.id()] = op

	slot, ok := l.driver.getSQE()
	if !ok {
		delete(l.registry, op.id())
		return errors.From(ErrSubmissionExhausted)
	}
	op.encode(slot)
	slot.setUserData(op.id())

	if guard != nil {
		guard.markSubmitted()
		return nil
	}
	if _, err := l.driver.submit(); err != nil {
		delete(l.registry, op.id())
		return setupError("ring_submit", err)
	}
	return nil
}

// CloseFd submits a close operation for fd. The callback receives the
// closed descriptor; close never resubmits.
func (l *EventLoop) CloseFd(fd Fd, callback func(EventContext, CloseResponse), guard *SubmitGuard) error {
	op := &closeOp{opID: l.allocID(), fd: fd, callback: callback}
	return l.submit(op, guard)
}

// Timer submits a one-shot timeout for duration. If callback returns
// true, the timer is resubmitted with its start instant reset to now.
func (l *EventLoop) Timer(duration time.Duration, callback func(EventContext, TimerResponse) bool, guard *SubmitGuard) error {
	op := &timerOp{opID: l.allocID(), start: time.Now(), duration: duration, callback: callback}
	return l.submit(op, guard)
}

// Accept submits an accept on server. A positive result plus a true
// callback return resubmits the same accept.
func (l *EventLoop) Accept(server Socket, callback func(EventContext, AcceptResponse) bool, guard *SubmitGuard) error {
	op := &acceptOp{opID: l.allocID(), server: server, callback: callback}
	return l.submit(op, guard)
}

// ConnectTCP synchronously creates a client socket, then submits a
// connect toward ip:port.
func (l *EventLoop) ConnectTCP(ip net.IP, port int, callback func(EventContext, ConnectResponse), guard *SubmitGuard) error {
	fd, err := socketInet4Stream()
	if err != nil {
		return setupError("socket", err)
	}
	op := &connectOp{opID: l.allocID(), client: Socket(fd), callback: callback, address: Address{Kind: "inet", IP: ip, Port: port}}
	op.addrLen = encodeInet4Sockaddr(&op.addr, ip, port)
	if err := l.submit(op, guard); err != nil {
		return err
	}
	return nil
}

// ConnectUnix synchronously creates a client socket, then submits a
// connect toward the unix domain socket at path.
func (l *EventLoop) ConnectUnix(path string, callback func(EventContext, ConnectResponse), guard *SubmitGuard) error {
	fd, err := socketUnixStream()
	if err != nil {
		return setupError("socket", err)
	}
	op := &connectOp{opID: l.allocID(), client: Socket(fd), callback: callback, address: Address{Kind: "unix", Path: path}}
	op.addrLen = encodeUnixSockaddr(&op.addr, path)
	return l.submit(op, guard)
}

// Receive submits a recv on client into buffer. The operation takes over
// the caller's handle on buffer and releases it when the operation retires.
func (l *EventLoop) Receive(client Socket, buffer Buffer, callback func(EventContext, ReceiveResponse) bool, guard *SubmitGuard) error {
	op := &receiveOp{opID: l.allocID(), client: client, buffer: buffer, callback: callback}
	return l.submit(op, guard)
}

// Send submits a send of data's current view on client. The operation
// takes over the caller's handle on data and releases it on completion.
func (l *EventLoop) Send(client Socket, data Buffer, callback func(EventContext, SendResponse), guard *SubmitGuard) error {
	op := &sendOp{opID: l.allocID(), client: client, data: data, callback: callback}
	return l.submit(op, guard)
}

// OpenFile submits an openat(2) for path.
func (l *EventLoop) OpenFile(path string, flags int, mode uint32, callback func(EventContext, OpenFileResponse), guard *SubmitGuard) error {
	op := &openFileOp{opID: l.allocID(), path: cPath(path), flags: flags, mode: mode, callback: callback}
	return l.submit(op, guard)
}

// ReadFile submits a read on file into buffer starting at offset. A
// positive result plus a true callback return resubmits, advancing the
// offset by the number of bytes read.
func (l *EventLoop) ReadFile(file File, buffer Buffer, offset uint64, callback func(EventContext, ReadFileResponse) bool, guard *SubmitGuard) error {
	op := &readFileOp{opID: l.allocID(), file: file, buffer: buffer, offset: offset, callback: callback}
	return l.submit(op, guard)
}

// WriteFile submits a write of data's current view to file at offset 0.
func (l *EventLoop) WriteFile(file File, data Buffer, callback func(EventContext, WriteFileResponse), guard *SubmitGuard) error {
	op := &writeFileOp{opID: l.allocID(), file: file, data: data, callback: callback}
	return l.submit(op, guard)
}

// StatFile submits a statx(2) for path.
func (l *EventLoop) StatFile(path string, flags int, mask uint32, callback func(EventContext, StatFileResponse), guard *SubmitGuard) error {
	op := &statFileOp{opID: l.allocID(), path: cPath(path), flags: flags, mask: mask, callback: callback}
	return l.submit(op, guard)
}

// Allocate returns a new pooled Buffer holding one live reference.
func (l *EventLoop) Allocate(size int) Buffer { return Allocate(size) }

// Deallocate drops the loop's reference on buffer.
func (l *EventLoop) Deallocate(buffer Buffer) error { return buffer.Release() }

func cPath(path string) []byte {
	b := make([]byte, len(path)+1)
	copy(b, path)
	return b
}
