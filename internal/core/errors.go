package core

import (
	"errors"
)

// ErrScoringUnavailable is the kind reported when no probability could be
// obtained for an email
var ErrScoringUnavailable = errors.New("scoring unavailable")

// ClassificationError is returned by Classify when no verdict can be
// produced. Error() only reports the failing component kind; the wrapped
// cause stays available through errors.Unwrap for logging.
type ClassificationError struct {
	Kind  error
	Cause error
}

func (e *ClassificationError) Error() string {
	return e.Kind.Error()
}

func (e *ClassificationError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func newScoringError(cause error) *ClassificationError {
	return &ClassificationError{Kind: ErrScoringUnavailable, Cause: cause}
}
