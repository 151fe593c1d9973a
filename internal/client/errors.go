package client

import (
	"errors"

	"nexuschat/internal/correlate"
)

// Error classes. Anything wrapping ErrAuthentication or ErrTransport
// invalidates the connection and collapses the state machine to LoggedOut;
// the others are local to one request and leave the connection alive.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrTransport      = errors.New("transport failure")
	ErrCrypto         = errors.New("crypto failure")
	ErrNotLoggedOut   = errors.New("client is not logged out")
	ErrNotEstablished = errors.New("connection not established")
)

// ErrCorrelationTimeout is the recoverable class for a correlated reply that
// never arrived.
var ErrCorrelationTimeout = correlate.ErrTimeout
