package stage

import "coverdex/internal/pipeline"

// Health reports whether a stage's external dependency (vision model,
// suggestion API, metadata API) is reachable enough to run.
type Health struct {
	Stage  pipeline.Stage
	Ready  bool
	Detail string
}

// Healthy marks a stage ready.
func Healthy(stg pipeline.Stage) Health {
	return Health{Stage: stg, Ready: true}
}

// Unhealthy marks a stage not ready, with the reason in Detail.
func Unhealthy(stg pipeline.Stage, detail string) Health {
	return Health{Stage: stg, Ready: false, Detail: detail}
}
