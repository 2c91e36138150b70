package contentid

import (
	"errors"
	"fmt"
)

// ErrDuplicateContent indicates the candidate text is a near-duplicate of
// already-registered content. Hard reject, never retried.
var ErrDuplicateContent = errors.New("duplicate content")

// DuplicateError identifies the nearest existing unit and its similarity.
type DuplicateError struct {
	NearestUnitID string
	Similarity    float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("near-duplicate of unit %s (similarity %.2f)", e.NearestUnitID, e.Similarity)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateContent }
