package scheduler

import (
	"errors"
	"fmt"
)

// ErrScheduleCollision indicates no publish slot is available within the
// lookahead window under the configured caps.
var ErrScheduleCollision = errors.New("no publish slot available")

// CollisionError carries the search bounds that were exhausted.
type CollisionError struct {
	UnitID   string
	Language string
	Days     int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("no publish slot for unit %s (language %s) within %d days", e.UnitID, e.Language, e.Days)
}

func (e *CollisionError) Unwrap() error { return ErrScheduleCollision }
