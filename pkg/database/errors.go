package database

import "errors"

// ErrNotReady indicates the database connection has not been established.
var ErrNotReady = errors.New("database not ready")

// Require returns ErrNotReady until sys reports ready.
func Require(sys System) error {
	if sys == nil || !sys.Ready() {
		return ErrNotReady
	}
	return nil
}
