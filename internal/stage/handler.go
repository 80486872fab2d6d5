package stage

import "context"

// Handler describes the contract the workflow manager needs from each step.
// Prepare checks that earlier steps produced what Execute consumes; Execute
// does the work and records its outputs on the Run.
type Handler interface {
	Prepare(context.Context, *Run) error
	Execute(context.Context, *Run) error
	HealthCheck(context.Context) Health
}
