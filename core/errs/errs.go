// Package errs defines the error kinds shared by every MES service.
// Services wrap a kind with context via fmt.Errorf("...: %w", kind) and
// callers test with errors.Is.
package errs

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNotCompleted       = errors.New("workorder not completed")
	ErrSyncAlreadyRunning = errors.New("sync already running")
	ErrAlreadyExpanded    = errors.New("processes already expanded")
	ErrDataSource         = errors.New("data source error")
)

// FromDB maps gorm sentinel errors onto the MES kinds. Other errors pass through.
func FromDB(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}

// HTTPStatus picks the response code for an error returned by a service.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrAlreadyExpanded), errors.Is(err, ErrSyncAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrInvariantViolation), errors.Is(err, ErrNotCompleted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrDataSource):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
