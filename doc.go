// Package evring implements a single-threaded, completion-based
// asynchronous I/O runtime on top of io_uring.
//
// A caller submits an operation together with a completion handler; the
// call returns immediately and the handler runs later, on the goroutine
// that called (*EventLoop).Run, once the kernel reports the operation's
// completion. Repeating operations (Accept, Receive, ReadFile, Timer) are
// resubmitted automatically when their handler asks for it; Accept, Receive
// and ReadFile are resubmitted only after a positive completion result.
package evring
