package stage

import (
	"context"

	"reelcap/internal/history"
)

// Handler describes the contract the pipeline runner needs from each stage.
type Handler interface {
	Prepare(context.Context, *history.Job) error
	Execute(context.Context, *history.Job) error
	HealthCheck(context.Context) Health
}
