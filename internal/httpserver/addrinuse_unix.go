//go:build unix

package httpserver

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsAddrInUse reports whether a Listen error means the port is taken.
func IsAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
