package stage

import (
	"context"

	"coverdex/internal/catalog"
	"coverdex/internal/pipeline"
)

// Options carries run-scoped handler knobs. Zero values fall back to
// the handler's configured defaults.
type Options struct {
	TitleModel       string
	TeamModel        string
	TranslationModel string
	MaxResults       int
}

// RunConfig carries the per-run options a handler may consult.
type RunConfig struct {
	// Overwrite forces the handler to recompute its outputs even when the
	// persisted fields already satisfy the stage.
	Overwrite bool
	Options   Options
}

// Handler describes the contract the workflow controller needs from each
// enrichment stage. Execute mutates the item's stage-output fields in
// place; the controller persists the item and owns every workflow_*
// field.
type Handler interface {
	Stage() pipeline.Stage
	Execute(context.Context, *catalog.Item, RunConfig) error
	HealthCheck(context.Context) Health
}
