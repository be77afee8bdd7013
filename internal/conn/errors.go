package conn

import "errors"

var (
	// ErrRetriesExhausted is surfaced through the error hook when the
	// reconnect cap is hit. It is terminal: the manager will not dial again
	// until the next explicit Open.
	ErrRetriesExhausted = errors.New("connection lost and reconnect attempts exhausted")

	// ErrAlreadyOpen is returned by Open when a connection is live.
	ErrAlreadyOpen = errors.New("connection already open")
)
