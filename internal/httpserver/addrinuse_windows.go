//go:build windows

package httpserver

import (
	"errors"

	"golang.org/x/sys/windows"
)

// IsAddrInUse reports whether a Listen error means the port is taken.
func IsAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
