package ssh

import (
	"errors"
	"strings"

	"golang.org/x/crypto/ssh/knownhosts"
)

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication or
	// host key verification
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the operation may succeed.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// IsTemporary reports whether err is a retryable transport error.
func IsTemporary(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.IsTemporary
}

// handshakeError classifies a failed SSH handshake. Rejected credentials and
// host keys are permanent, anything else is assumed to be the network.
func handshakeError(err error) *TransportError {
	var keyErr *knownhosts.KeyError
	auth := errors.As(err, &keyErr) ||
		strings.Contains(err.Error(), "unable to authenticate") ||
		strings.Contains(err.Error(), "knownhosts:")

	return &TransportError{
		Op:          "handshake",
		Err:         err,
		IsTemporary: !auth,
		IsAuthError: auth,
	}
}
