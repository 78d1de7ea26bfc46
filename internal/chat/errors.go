package chat

import "errors"

var (
	ErrNotFound         = errors.New("message not found")
	ErrForbidden        = errors.New("only the sender can delete a message")
	ErrPersistence      = errors.New("failed to persist")
	ErrEmptyMessage     = errors.New("message needs text or an attachment")
	ErrUnknownRecipient = errors.New("recipient not found")
)
