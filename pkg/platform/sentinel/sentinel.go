package sentinel

import "errors"

// Stores return these, optionally wrapped, for facts about stored records.
// Services translate them into coded domain errors; input validation never
// uses them.
var (
	// ErrNotFound means no record has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness rule refused the write.
	ErrConflict = errors.New("conflict")
	// ErrInvariantViolation means a stored-state constraint refused the write.
	ErrInvariantViolation = errors.New("invariant violation")
)
