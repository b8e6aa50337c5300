//go:build linux

package kernel

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

var (
	cached     Version
	cachedErr  error
	cachedOnce sync.Once
)

func parseVersion(release string) (v Version, err error) {
	var partial string
	parsed, _ := fmt.Sscanf(release, "%d.%d%s", &v.Major, &v.Minor, &partial)
	if parsed < 2 {
		err = errors.New("kernel: cannot parse release string", errors.WithMeta("release", release))
		return
	}
	fmt.Sscanf(partial, ".%d", &v.Patch)
	return
}

// Get returns the running kernel's version, parsed from uname(2). The
// result is cached after the first call.
func Get() (Version, error) {
	cachedOnce.Do(func() {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err != nil {
			cachedErr = errors.New("kernel: uname failed", errors.WithWrap(err))
			return
		}
		release := string(uts.Release[:bytes.IndexByte(uts.Release[:], 0)])
		cached, cachedErr = parseVersion(release)
	})
	return cached, cachedErr
}
