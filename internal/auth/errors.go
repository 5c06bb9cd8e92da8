package auth

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned when an operation requires the identity
// provider client and initialization has not completed (or failed).
var ErrNotReady = errors.New("session manager not ready")

// ErrNoSession is returned by token acquisition when no account is
// active; the caller is expected to fall back to a login redirect.
var ErrNoSession = errors.New("no active session")

// ErrorKind classifies provider failures so callers never have to sniff
// error strings.
type ErrorKind int

const (
	// KindProvider covers network and protocol failures: recoverable,
	// per-call, never fatal to the session.
	KindProvider ErrorKind = iota

	// KindInteractionRequired means silent acquisition cannot proceed
	// and the visitor must go through an interactive redirect.
	KindInteractionRequired
)

func (k ErrorKind) String() string {
	switch k {
	case KindInteractionRequired:
		return "interaction_required"
	default:
		return "provider_error"
	}
}

// ProviderError is the tagged error returned by identity-provider
// implementations.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsInteractionRequired reports whether err is a provider error that
// must be escalated to an interactive redirect.
func IsInteractionRequired(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindInteractionRequired
}
