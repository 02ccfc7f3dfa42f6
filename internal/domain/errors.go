package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies session failures.
type ErrorCode string

const (
	ErrCodeSessionCreateFailed        ErrorCode = "SESSION_CREATE_FAILED"
	ErrCodeSignalingUnavailable       ErrorCode = "SIGNALING_UNAVAILABLE"
	ErrCodeNegotiationFailed          ErrorCode = "NEGOTIATION_FAILED"
	ErrCodeConnectivityFailed         ErrorCode = "CONNECTIVITY_FAILED"
	ErrCodeProtocolViolation          ErrorCode = "PROTOCOL_VIOLATION"
	ErrCodeUnknownAction              ErrorCode = "UNKNOWN_ACTION"
	ErrCodePeerError                  ErrorCode = "PEER_ERROR"
	ErrCodePeerCapabilityUnavailable  ErrorCode = "PEER_CAPABILITY_UNAVAILABLE"
)

// SessionError is an error with a session failure code and an optional cause.
type SessionError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// NewSessionError builds a SessionError. Cause may be nil.
func NewSessionError(code ErrorCode, message string, cause error) *SessionError {
	return &SessionError{Code: code, Message: message, Cause: cause}
}

// PeerError maps an error message received from the remote peer to a
// SessionError, distinguishing the capability-unavailable case (the remote
// relay reporting its media stack is missing) from generic peer errors.
func PeerError(message string) *SessionError {
	code := ErrCodePeerError
	if strings.Contains(strings.ToLower(message), "not available") {
		code = ErrCodePeerCapabilityUnavailable
	}
	return &SessionError{Code: code, Message: message}
}

// CodeOf extracts the ErrorCode from an error chain, or "" when the chain
// carries no SessionError.
func CodeOf(err error) ErrorCode {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
