package stage

import (
	"context"

	"guidora/internal/pipeline"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage. Prepare validates preconditions and may annotate the
// unit; Execute performs the work and records artifacts; the manager owns
// the stage transition afterwards.
type Handler interface {
	Prepare(context.Context, *pipeline.Unit) error
	Execute(context.Context, *pipeline.Unit) error
	HealthCheck(context.Context) Health
	// Target is the stage the unit moves to after a successful Execute.
	Target() pipeline.Stage
}
