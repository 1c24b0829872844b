package util

import (
	"errors"
	"fmt"
)

var (
	ErrTransientFetch      = errors.New("transient fetch fault")
	ErrFatalFetch          = errors.New("fatal fetch fault")
	ErrPageShape           = errors.New("page payload missing expected wrapper")
	ErrConstraintViolation = errors.New("natural key constraint violation")
	ErrStorage             = errors.New("storage fault")
	ErrStagingClosed       = errors.New("staging set already dropped")
)

// Transient marks err as retryable. The result matches ErrTransientFetch.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransientFetch, err)
}

// Fatal marks err as non-retryable. The result matches ErrFatalFetch.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatalFetch, err)
}

func IsTransient(err error) bool { return errors.Is(err, ErrTransientFetch) }

func IsFatal(err error) bool { return errors.Is(err, ErrFatalFetch) }
