package eventbus

import "errors"

var (
	errEmptyMessage = errors.New("eventbus: message has no data field")

	// ErrLockNotHeld is returned by Release when the caller's holder
	// token does not match (or no longer matches) the lock in Redis —
	// the release is a safe no-op, never force-clears someone else's
	// lock.
	ErrLockNotHeld = errors.New("eventbus: lock not held by this holder")
)
