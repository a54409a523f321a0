package download

import (
	"errors"
	"fmt"
)

var (
	// ErrMirrorList means the mirror list could not be fetched or was empty.
	ErrMirrorList = errors.New("mirror selection failed")
	// ErrTransfer means the mirror could not be downloaded.
	ErrTransfer = errors.New("download failed")
	// ErrIntegrity means the downloaded file failed SHA-1 verification.
	ErrIntegrity = errors.New("validation failed")
	// ErrSave means the verified file could not be written to its target.
	ErrSave = errors.New("saving failed")
)

// ErrBusy is returned when starting a task that has not reached a terminal
// state.
var ErrBusy = errors.New("download already in progress")

// Error is a terminal pipeline failure. errors.Is matches the category
// sentinel for Stage as well as the wrapped cause.
type Error struct {
	Stage State
	Err   error
}

func (e *Error) category() error {
	switch e.Stage {
	case StateFetchingMirrorList:
		return ErrMirrorList
	case StateDownloading:
		return ErrTransfer
	case StateVerifying:
		return ErrIntegrity
	case StateSaving:
		return ErrSave
	default:
		return nil
	}
}

func (e *Error) Error() string {
	if c := e.category(); c != nil {
		return fmt.Sprintf("%v: %v", c, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	c := e.category()
	return c != nil && target == c
}
