//go:build !linux

package kernel

import "github.com/brickingsoft/errors"

// Get always fails on non-Linux platforms: evring is an io_uring runtime
// and has no meaning off Linux.
func Get() (Version, error) {
	return Version{}, errors.New("kernel: only linux is supported")
}
