package evring

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventContext is handed to every completion handler. It carries the raw
// kernel result for the completion being dispatched and a reference back
// to the owning loop so handlers can submit further operations or ask the
// loop to stop.
type EventContext struct {
	Loop   *EventLoop
	Result int32
}

// ResultAsSize clamps a signed kernel result to a non-negative byte count,
// per spec: negative results (errors, EOF markers) read as zero bytes.
func (c EventContext) ResultAsSize() int {
	if c.Result > 0 {
		return int(c.Result)
	}
	return 0
}

// Stop requests the loop exit at its next wake-up.
func (c EventContext) Stop() {
	c.Loop.requestStop()
}

// operation is the tagged-variant contract every operation kind
// implements. A single concrete type exists per kind (§3 of the design);
// the registry holds them uniformly through this interface, and the loop's
// run method dispatches each completion by calling handle on it.
type operation interface {
	id() uint64
	repeating() bool
	encode(s sqe)
	handle(ctx EventContext) bool
	// prepareResubmit resets per-kind state (clears buffers, resets an
	// accept's address cell, restarts a timer's clock) before the record is
	// re-encoded into a fresh slot. A read's offset is advanced earlier, by
	// its handle.
	prepareResubmit()
	// release drops every buffer or other owned resource the record
	// holds. Called exactly once, at retirement.
	release()
	// needsPositiveResult reports whether resubmission additionally
	// requires a positive completion result on top of the handler's
	// boolean return (Accept, Receive, ReadFile, per spec §4.6). Timer
	// resubmits on the handler's boolean return alone: a normal timeout
	// expiration reports a negative result (-ETIME), not a positive one.
	needsPositiveResult() bool
}

// ---- Close -----------------------------------------------------------

type CloseResponse struct {
	Fd Fd
}

type closeOp struct {
	opID     uint64
	fd       Fd
	callback func(EventContext, CloseResponse)
}

func (o *closeOp) id() uint64                { return o.opID }
func (o *closeOp) repeating() bool           { return false }
func (o *closeOp) needsPositiveResult() bool { return false }
func (o *closeOp) encode(s sqe)              { s.prepareClose(int32(o.fd)) }
func (o *closeOp) prepareResubmit()          {}
func (o *closeOp) release()                  {}

func (o *closeOp) handle(ctx EventContext) bool {
	if o.callback != nil {
		o.callback(ctx, CloseResponse{Fd: o.fd})
	}
	return false
}

// ---- Timer -------------------------------------------------------------

type TimerResponse struct {
	Elapsed time.Duration
}

type timerOp struct {
	opID     uint64
	start    time.Time
	duration time.Duration
	ts       kernelTimespec
	callback func(EventContext, TimerResponse) bool
}

func (o *timerOp) id() uint64                { return o.opID }
func (o *timerOp) repeating() bool           { return true }
func (o *timerOp) needsPositiveResult() bool { return false }

func (o *timerOp) encode(s sqe) {
	remaining := o.duration - time.Since(o.start)
	if remaining < 0 {
		remaining = 0
	}
	o.ts = newKernelTimespec(remaining)
	s.prepareTimeout(&o.ts.raw)
}

func (o *timerOp) prepareResubmit() {
	o.start = time.Now()
}

func (o *timerOp) release() {}

func (o *timerOp) handle(ctx EventContext) bool {
	elapsed := time.Since(o.start)
	if o.callback == nil {
		return false
	}
	return o.callback(ctx, TimerResponse{Elapsed: elapsed})
}

// ---- Accept --------------------------------------------------------

type AcceptResponse struct {
	Client  Socket
	Address Address
}

type acceptOp struct {
	opID     uint64
	server   Socket
	addr     unix.RawSockaddrAny
	addrLen  uint32
	callback func(EventContext, AcceptResponse) bool
}

func (o *acceptOp) id() uint64                { return o.opID }
func (o *acceptOp) repeating() bool           { return true }
func (o *acceptOp) needsPositiveResult() bool { return true }

func (o *acceptOp) encode(s sqe) {
	o.addrLen = uint32(unsafe.Sizeof(o.addr))
	s.prepareAccept(int32(o.server), &o.addr, &o.addrLen)
}

func (o *acceptOp) prepareResubmit() {
	o.addr = unix.RawSockaddrAny{}
}

func (o *acceptOp) release() {}

func (o *acceptOp) handle(ctx EventContext) bool {
	if o.callback == nil {
		return false
	}
	return o.callback(ctx, AcceptResponse{
		Client:  Socket(ctx.Result),
		Address: decodeSockaddr(&o.addr),
	})
}

// ---- Connect -------------------------------------------------------

type ConnectResponse struct {
	Client  Socket
	Address Address
	Err     error
}

type connectOp struct {
	opID     uint64
	client   Socket
	addr     unix.RawSockaddrAny
	addrLen  uint32
	address  Address
	callback func(EventContext, ConnectResponse)
}

func (o *connectOp) id() uint64                { return o.opID }
func (o *connectOp) repeating() bool           { return false }
func (o *connectOp) needsPositiveResult() bool { return false }
func (o *connectOp) encode(s sqe)              { s.prepareConnect(int32(o.client), &o.addr, o.addrLen) }
func (o *connectOp) prepareResubmit()          {}
func (o *connectOp) release()                  {}

func (o *connectOp) handle(ctx EventContext) bool {
	if o.callback == nil {
		return false
	}
	var err error
	if ctx.Result < 0 {
		err = unix.Errno(-ctx.Result)
	}
	o.callback(ctx, ConnectResponse{Client: o.client, Address: o.address, Err: err})
	return false
}

// ---- Receive ---------------------------------------------------------

type ReceiveResponse struct {
	Client Socket
	Data   []byte
}

type receiveOp struct {
	opID     uint64
	client   Socket
	buffer   Buffer
	callback func(EventContext, ReceiveResponse) bool
}

func (o *receiveOp) id() uint64                { return o.opID }
func (o *receiveOp) repeating() bool           { return true }
func (o *receiveOp) needsPositiveResult() bool { return true }
func (o *receiveOp) encode(s sqe)              { s.prepareRecv(int32(o.client), o.buffer.Data()) }
func (o *receiveOp) prepareResubmit() {
	o.buffer.Clear()
}
func (o *receiveOp) release() { o.buffer.Release() }

func (o *receiveOp) handle(ctx EventContext) bool {
	if o.callback == nil {
		return false
	}
	data := o.buffer.Data()[:ctx.ResultAsSize()]
	return o.callback(ctx, ReceiveResponse{Client: o.client, Data: data})
}

// ---- Send --------------------------------------------------------------

type SendResponse struct {
	Client Socket
	Size   int
}

type sendOp struct {
	opID     uint64
	client   Socket
	data     Buffer
	callback func(EventContext, SendResponse)
}

func (o *sendOp) id() uint64                { return o.opID }
func (o *sendOp) repeating() bool           { return false }
func (o *sendOp) needsPositiveResult() bool { return false }
func (o *sendOp) encode(s sqe)              { s.prepareSend(int32(o.client), o.data.Data()) }
func (o *sendOp) prepareResubmit()          {}
func (o *sendOp) release()                  { o.data.Release() }

func (o *sendOp) handle(ctx EventContext) bool {
	if o.callback != nil {
		o.callback(ctx, SendResponse{Client: o.client, Size: ctx.ResultAsSize()})
	}
	return false
}

// ---- OpenFile ------------------------------------------------------

type OpenFileResponse struct {
	File File
}

type openFileOp struct {
	opID     uint64
	path     []byte
	flags    int
	mode     uint32
	callback func(EventContext, OpenFileResponse)
}

func (o *openFileOp) id() uint64                { return o.opID }
func (o *openFileOp) repeating() bool           { return false }
func (o *openFileOp) needsPositiveResult() bool { return false }
func (o *openFileOp) encode(s sqe)              { s.prepareOpenat(&o.path[0], o.flags, o.mode) }
func (o *openFileOp) prepareResubmit()          {}
func (o *openFileOp) release()                  {}

func (o *openFileOp) handle(ctx EventContext) bool {
	if o.callback != nil {
		o.callback(ctx, OpenFileResponse{File: File(ctx.Result)})
	}
	return false
}

// ---- ReadFile ------------------------------------------------------

type ReadFileResponse struct {
	File   File
	Data   []byte
	Offset uint64
}

type readFileOp struct {
	opID     uint64
	file     File
	buffer   Buffer
	offset   uint64
	callback func(EventContext, ReadFileResponse) bool
}

func (o *readFileOp) id() uint64                { return o.opID }
func (o *readFileOp) repeating() bool           { return true }
func (o *readFileOp) needsPositiveResult() bool { return true }
func (o *readFileOp) encode(s sqe)              { s.prepareRead(int32(o.file), o.buffer.Data(), o.offset) }

func (o *readFileOp) prepareResubmit() {
	o.buffer.Clear()
}

func (o *readFileOp) release() { o.buffer.Release() }

func (o *readFileOp) handle(ctx EventContext) bool {
	offset := o.offset
	if o.callback == nil {
		return false
	}
	data := o.buffer.Data()[:ctx.ResultAsSize()]
	resubmit := o.callback(ctx, ReadFileResponse{File: o.file, Data: data, Offset: offset})
	if resubmit && ctx.Result > 0 {
		o.offset += uint64(ctx.Result)
	}
	return resubmit
}

// ---- WriteFile -----------------------------------------------------

type WriteFileResponse struct {
	File File
	Size int
}

type writeFileOp struct {
	opID     uint64
	file     File
	data     Buffer
	callback func(EventContext, WriteFileResponse)
}

func (o *writeFileOp) id() uint64                { return o.opID }
func (o *writeFileOp) repeating() bool           { return false }
func (o *writeFileOp) needsPositiveResult() bool { return false }
func (o *writeFileOp) encode(s sqe)              { s.prepareWrite(int32(o.file), o.data.Data(), 0) }
func (o *writeFileOp) prepareResubmit()          {}
func (o *writeFileOp) release()                  { o.data.Release() }

func (o *writeFileOp) handle(ctx EventContext) bool {
	if o.callback != nil {
		o.callback(ctx, WriteFileResponse{File: o.file, Size: ctx.ResultAsSize()})
	}
	return false
}

// ---- StatFile ------------------------------------------------------

type StatFileResponse struct {
	Stats *unix.Statx_t
	Err   error
}

type statFileOp struct {
	opID     uint64
	path     []byte
	flags    int
	mask     uint32
	stats    unix.Statx_t
	callback func(EventContext, StatFileResponse)
}

func (o *statFileOp) id() uint64                { return o.opID }
func (o *statFileOp) repeating() bool           { return false }
func (o *statFileOp) needsPositiveResult() bool { return false }
func (o *statFileOp) encode(s sqe) {
	s.prepareStatx(&o.path[0], o.flags, o.mask, &o.stats)
}
func (o *statFileOp) prepareResubmit() {}
func (o *statFileOp) release()         {}

func (o *statFileOp) handle(ctx EventContext) bool {
	if o.callback == nil {
		return false
	}
	resp := StatFileResponse{}
	if ctx.Result >= 0 {
		resp.Stats = &o.stats
	} else {
		resp.Err = unix.Errno(-ctx.Result)
	}
	o.callback(ctx, resp)
	return false
}
