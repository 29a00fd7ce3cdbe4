package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPreamble is returned when the peer closes the connection
	// before sending any byte of a new message.
	ErrEmptyPreamble = errors.New("codec: HTTP preamble is empty")

	// ErrMalformed wraps every framing violation found while parsing.
	ErrMalformed = errors.New("codec: malformed message")

	// ErrUnconsumedBody is returned when the application left a request
	// body unread.
	ErrUnconsumedBody = errors.New("codec: request body not consumed by application")

	// ErrInvalidResponse wraps response framing violations.
	ErrInvalidResponse = errors.New("codec: invalid response")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidResponse}, args...)...)
}
