package evring

// ReadLine reads from standard input via the file-read primitive,
// accumulating bytes until a newline, then invokes callback with the
// completed line (including the trailing newline) and clears the
// accumulator. callback's boolean return propagates directly into the
// underlying read's resubmission decision.
//
// bufSize sizes the chunk read per underlying completion, not the
// longest line supported: a line longer than bufSize simply spans
// several reads before it completes.
func (l *EventLoop) ReadLine(bufSize int, callback func(EventContext, string) bool, guard *SubmitGuard) error {
	buffer := l.Allocate(bufSize)
	var line []byte

	return l.ReadFile(Stdin, buffer, 0, func(ctx EventContext, resp ReadFileResponse) bool {
		for _, b := range resp.Data {
			line = append(line, b)
			if b == '\n' {
				if !callback(ctx, string(line)) {
					return false
				}
				line = line[:0]
			}
		}
		return true
	}, guard)
}
