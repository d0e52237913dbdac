package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeNotMember       = "not_member"
	ErrCodeTokenRejected   = "token_rejected"
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeInternal        = "internal"
)

var (
	// ErrUnauthenticated means the caller identity is missing or unparseable.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotMember means the identity may not enter or post to the room.
	ErrNotMember = errors.New("not a member of this room")
	// ErrTokenRejected covers unknown, expired, room-mismatched and
	// already consumed admission tokens alike.
	ErrTokenRejected = errors.New("admission token rejected")
	// ErrRoomNotFound means the external room reference did not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPersistence wraps storage failures during ingest.
	ErrPersistence = errors.New("persistence failure")
	// ErrSubscriberClosed is returned by Subscriber.Next after unsubscribe.
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// ErrorCode maps a core error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrNotMember):
		return ErrCodeNotMember
	case errors.Is(err, ErrTokenRejected):
		return ErrCodeTokenRejected
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	default:
		return ErrCodeInternal
	}
}

// AsCoreError converts err into a CoreError with a stable code.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	code := ErrorCode(err)
	if code == ErrCodeInternal {
		return &CoreError{Code: code, Message: "internal server error"}
	}
	return &CoreError{Code: code, Message: err.Error()}
}
