package domain

import "errors"

var (
	// ErrCorruptState signals that persisted bytes failed to decode. The
	// store recovers by substituting schema defaults; callers only see this
	// from Decode directly.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrSessionLocked is the typed refusal returned when a new
	// registration arrives while the session is locked. It is expected
	// control flow, not a failure.
	ErrSessionLocked = errors.New("session is locked")

	// ErrNotPrepared is returned when a session start is attempted before
	// the readiness check has passed.
	ErrNotPrepared = errors.New("session is not prepared")

	// ErrUnknownParticipant is returned by participant-scoped mutators for
	// ids that were never registered. Accessors never create implicitly.
	ErrUnknownParticipant = errors.New("unknown participant")
)
