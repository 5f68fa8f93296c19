package crafter

import (
	"errors"
	"fmt"
)

var (
	// ErrCharacterNotFound is returned when the game API has no such character.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrNotRegistered is returned when a character is not part of the directory.
	ErrNotRegistered = errors.New("character not registered")
	// ErrAlreadyRegistered is returned when adding a character that already has an owner.
	ErrAlreadyRegistered = errors.New("character already registered")
	ErrItemNotFound      = errors.New("item not found")
	ErrServerNotFound    = errors.New("server not found")
	// ErrProfessionNotFound is returned for unknown professions and for professions a character does not have.
	ErrProfessionNotFound = errors.New("profession not found")
	ErrInvalidName        = errors.New("invalid character name")
	ErrInvalidOwner       = errors.New("invalid owner id")

	// ErrFormat matches every *FormatError with errors.Is.
	ErrFormat = errors.New("format error")
)

// FormatError reports malformed input: a JSON payload from the game API or
// a directory file. Source names what was being parsed.
type FormatError struct {
	Source string
	Reason string
	Err    error
}

func NewFormatError(source, reason string, cause error) *FormatError {
	return &FormatError{Source: source, Reason: reason, Err: cause}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s: %s", e.Source, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
