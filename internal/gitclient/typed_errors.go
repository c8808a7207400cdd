package gitclient

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Typed clone errors enabling structured classification without string parsing upstream.

type AuthError struct {
	URL string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("clone auth error for %s: %v", e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	URL string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("clone not found %s: %v", e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnknownRevisionError struct {
	URL      string
	Revision string
	Err      error
}

func (e *UnknownRevisionError) Error() string {
	return fmt.Sprintf("unknown revision %s for %s: %v", e.Revision, e.URL, e.Err)
}
func (e *UnknownRevisionError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	URL string
	Err error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol %s: %v", e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

// classifyCloneError wraps underlying go-git errors into typed permanent
// failures where recognizable; anything else stays as-is and is treated as
// transient by the retry loop.
func classifyCloneError(url, revision string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password") || strings.Contains(l, "permission denied"):
		return &AuthError{URL: url, Err: err}
	case strings.Contains(l, "reference not found") || strings.Contains(l, "couldn't find remote ref"):
		return &UnknownRevisionError{URL: url, Revision: revision, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{URL: url, Err: err}
	default:
		return fmt.Errorf("failed to clone repository %s: %w", url, err)
	}
}

// IsPermanent reports whether the error is a non-retryable clone failure.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var (
		auth  *AuthError
		nf    *NotFoundError
		rev   *UnknownRevisionError
		proto *UnsupportedProtocolError
	)
	if errors.As(err, &auth) || errors.As(err, &nf) || errors.As(err, &rev) || errors.As(err, &proto) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return false // network errors are retryable
	}
	l := strings.ToLower(err.Error())
	if strings.Contains(l, "failed to remove existing directory") {
		return true
	}
	return false
}
