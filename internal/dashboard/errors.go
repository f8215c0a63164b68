package dashboard

import (
	"errors"

	"github.com/vidfriends/videosync/internal/optimistic"
)

var (
	// ErrFetchFailure indicates the full-collection fetch failed. The
	// collection keeps its previous contents.
	ErrFetchFailure = errors.New("fetch failed")
	// ErrMutationRejected indicates the backend refused a write and the
	// optimistic edit was reverted.
	ErrMutationRejected = errors.New("mutation rejected")
	// ErrMutationConflict indicates a mutation was requested while another
	// one for the same record was still pending.
	ErrMutationConflict = optimistic.ErrMutationInProgress
	// ErrSubscriptionFailure indicates the change feed could not be opened or
	// was lost. The view keeps working from fetches alone.
	ErrSubscriptionFailure = errors.New("subscription failed")
	// ErrClosed indicates the synchronizer has been closed.
	ErrClosed = errors.New("synchronizer closed")
	// ErrNotStarted indicates an operation that needs the event loop ran
	// before Start.
	ErrNotStarted = errors.New("synchronizer not started")
	// ErrOwnerRequired indicates a synchronizer was configured without an owner.
	ErrOwnerRequired = errors.New("owner id is required")
)

// ErrorReport is a user-facing failure handed to the Reporter.
type ErrorReport struct {
	Title   string
	Message string
	// Cause is the failure category, e.g. "permission-denied".
	Cause string
	Err   error
}

func (r ErrorReport) Error() string {
	if r.Err != nil {
		return r.Title + ": " + r.Err.Error()
	}
	return r.Title + ": " + r.Message
}

func (r ErrorReport) Unwrap() error {
	return r.Err
}

// rejectionMessage explains a reverted mutation by failure category.
func rejectionMessage(reason optimistic.Reason) string {
	switch reason {
	case optimistic.ReasonPermissionDenied:
		return "You do not have permission to change this video. Row-level security rejected the update."
	case optimistic.ReasonConstraintViolation:
		return "The change conflicts with data that depends on this video, such as its cutter assignment."
	default:
		return "The change could not be saved. The previous values have been restored."
	}
}
