package search

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded marks an anonymous caller that used up its free queries.
var ErrQuotaExceeded = errors.New("search quota exceeded")

// QuotaError is the user-facing form of ErrQuotaExceeded.
type QuotaError struct {
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("Free search limit exceeded (%d per day). Please log in for unlimited access.", e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
