package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tackle/internal/adapters/repository"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/spatial"
)

// Failure reasons, used as metric labels and in batch reports.
const (
	ReasonGroupNotFound       = "group_not_found"
	ReasonEmptyGroup          = "empty_group"
	ReasonIdentifierNotFound  = "identifier_not_found"
	ReasonAmbiguousIdentifier = "ambiguous_identifier"
	ReasonMissingCoordinates  = "missing_coordinates"
	ReasonCancelled           = "cancelled"
	ReasonOther               = "other"
)

// RecordError attributes a failure to the event record that caused it.
type RecordError struct {
	Key           model.Key
	TacklerID     int64
	BallCarrierID int64
	Err           error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s tackler=%d ballCarrier=%d: %v", e.Key, e.TacklerID, e.BallCarrierID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Reason classifies err into one of the Reason constants.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repository.ErrGroupNotFound):
		return ReasonGroupNotFound
	case errors.Is(err, spatial.ErrEmptyGroup):
		return ReasonEmptyGroup
	case errors.Is(err, spatial.ErrIdentifierNotFound):
		return ReasonIdentifierNotFound
	case errors.Is(err, spatial.ErrAmbiguousIdentifier):
		return ReasonAmbiguousIdentifier
	case errors.Is(err, spatial.ErrMissingCoordinates):
		return ReasonMissingCoordinates
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	default:
		return ReasonOther
	}
}
