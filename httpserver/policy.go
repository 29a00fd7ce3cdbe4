package httpserver

import "slices"

// KeepAlive reports whether a connection stays open after a response with
// the given status. Statuses below 400 keep the connection; error statuses
// close it unless listed in KeepAliveStatuses.
func (c Config) KeepAlive(status int) bool {
	return status < 400 || slices.Contains(c.KeepAliveStatuses, status)
}
