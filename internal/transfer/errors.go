package transfer

import "fmt"

// SourceNotCompletedError signals a transfer from an iteration that has not
// finished yet. Nothing is mutated when it is returned.
type SourceNotCompletedError struct {
	IterationID string
}

func (e *SourceNotCompletedError) Error() string {
	return fmt.Sprintf("iteration %s is not completed; only a finished iteration can be carried over", e.IterationID)
}

// DestinationClosedError signals a transfer into an iteration whose end date
// has already passed. Nothing is mutated when it is returned.
type DestinationClosedError struct {
	IterationID string
}

func (e *DestinationClosedError) Error() string {
	return fmt.Sprintf("iteration %s is closed; unfinished items cannot be moved into it", e.IterationID)
}
