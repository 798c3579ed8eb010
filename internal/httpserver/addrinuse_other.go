//go:build !unix && !windows

package httpserver

import "strings"

// IsAddrInUse reports whether a Listen error means the port is taken.
func IsAddrInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "address already in use")
}
