package kernel_test

import (
	"testing"

	"github.com/brickingsoft/evring/pkg/kernel"
)

func TestVersionGTE(t *testing.T) {
	cases := []struct {
		v              kernel.Version
		major, minor   int
		patch          int
		expectAtLeast  bool
	}{
		{kernel.Version{Major: 6, Minor: 1, Patch: 0}, 5, 6, 0, true},
		{kernel.Version{Major: 5, Minor: 6, Patch: 0}, 5, 6, 0, true},
		{kernel.Version{Major: 5, Minor: 5, Patch: 9}, 5, 6, 0, false},
		{kernel.Version{Major: 4, Minor: 19, Patch: 0}, 5, 6, 0, false},
	}
	for _, c := range cases {
		if got := c.v.GTE(c.major, c.minor, c.patch); got != c.expectAtLeast {
			t.Errorf("%s.GTE(%d,%d,%d) = %v, want %v", c.v, c.major, c.minor, c.patch, got, c.expectAtLeast)
		}
	}
}
