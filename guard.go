package evring

// SubmitGuard batches submissions made through it into a single ring
// submit call. Grounded on the design's scoped guard: since Go has no
// deterministic scope exit, the guard is a builder the caller commits
// explicitly by calling Flush (typically via defer), rather than an
// object whose destructor fires the flush.
//
// A handler broadcasting to N connections would otherwise issue N
// syscalls; routing each Send through one guard collapses them to one.
type SubmitGuard struct {
	loop      *EventLoop
	submitted int
}

// NewSubmitGuard returns a guard bound to loop. It must not be shared
// across goroutines.
func (l *EventLoop) NewSubmitGuard() *SubmitGuard {
	return &SubmitGuard{loop: l}
}

func (g *SubmitGuard) markSubmitted() {
	g.submitted++
}

// Flush issues a single ring submit if any submission was routed through
// this guard since construction or the last Flush.
func (g *SubmitGuard) Flush() error {
	if g.submitted == 0 {
		return nil
	}
	g.submitted = 0
	if _, err := g.loop.driver.submit(); err != nil {
		return setupError("ring_submit", err)
	}
	return nil
}
