package engine

import "errors"

var (
	// ErrNotEditable covers every edit refusal: sender mismatch, expired
	// window, non-text payload, or a message already deleted for everyone.
	ErrNotEditable = errors.New("message not editable")
	// ErrMessageNotFound is returned when the target message does not
	// exist in the conversation.
	ErrMessageNotFound = errors.New("message not found")
	// ErrInvalidBody is returned when an outgoing body carries zero or
	// more than one payload kind.
	ErrInvalidBody = errors.New("invalid message body")
)
