package engine

import (
	"fmt"
	"time"

	"github.com/valetpark/valetpark/internal/capacity"
	"github.com/valetpark/valetpark/internal/model"
)

// ValidationError reports malformed or missing input.  The caller must
// correct the request; nothing was mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InvalidTransitionError reports that a reservation is not in the source
// state the requested transition needs.  It usually means the caller acted
// on stale data and should reload the record.
type InvalidTransitionError struct {
	ReservationID string
	Current       model.Status
	Requested     model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservation %s is %s, cannot transition to %s",
		e.ReservationID, e.Current, e.Requested)
}

// CapacityConflictError is the structured outcome of an inadmissible
// accept.  It is a decision point rather than a failure: the caller may
// abandon, or retry with the override flag if authorized.  Days carries the
// full day-by-day breakdown, including the days that do fit.
type CapacityConflictError struct {
	ReservationID string
	Evaluation    capacity.Evaluation
}

func (e *CapacityConflictError) Error() string {
	return fmt.Sprintf("insufficient capacity for reservation %s on %d day(s)",
		e.ReservationID, len(e.OverLimitDays()))
}

// OverLimitDays returns the dates that exceeded a limit.
func (e *CapacityConflictError) OverLimitDays() []time.Time {
	return e.Evaluation.OverLimitDays()
}

// NotFoundError reports an unknown reservation id.
type NotFoundError struct {
	ReservationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation %s not found", e.ReservationID)
}

// StorageError wraps a failure of the underlying store.  The operation left
// no partial state behind; callers may retry with backoff.  The engine
// never retries on its own, as a blind retry could append duplicate audit
// entries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
