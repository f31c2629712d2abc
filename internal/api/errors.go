package api

import "errors"

var (
	// ErrRateLimited is returned for HTTP 429 and while the pd circuit is open.
	ErrRateLimited = errors.New("rate limited")
	ErrNotFound    = errors.New("not found")
	ErrNoLockfile  = errors.New("lockfile not found")
)
