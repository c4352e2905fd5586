package services

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Lookup failures the engine reports back to the user.
var (
	ErrNoTransactions = errors.New("no transactions")
	ErrUnknownMessage = errors.New("unknown message")
	ErrNoPosting      = errors.New("no posting for message")
	ErrInvalidIndex   = errors.New("invalid option index")
	ErrInvalidInput   = errors.New("invalid input")
)

// UserError is an error whose message is shown verbatim to the user.
// Anything that is not a UserError is treated as internal.
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string { return e.Msg }

func (e *UserError) Unwrap() error { return e.Err }

func userError(kind error, format string, args ...any) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, args...), Err: kind}
}

// AsUserError reports whether err carries a user-facing message.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
