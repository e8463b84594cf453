package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid rejects a request before the journal is touched.
	ErrInvalid = errors.New("invalid request")
	// ErrJournal reports a journal failure that was rolled back. The request
	// may be resubmitted.
	ErrJournal = errors.New("journal failure")
	// ErrHalted is returned once a commit has failed.
	ErrHalted = errors.New("exchange halted")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
