package workflow

import "coverdex/internal/pipeline"

// Node names as they appear in workflow_current_node and history events.
const (
	NodeLoad        = "load"
	NodeApplyAction = "apply_action"
	NodeExtraction  = "extract_cover"
	NodeIMDb        = "search_links"
	NodeTitleES     = "fetch_title_es"
	NodeOMDb        = "fetch_metadata"
	NodeTranslation = "translate_plot"
	NodeEvaluate    = "evaluate"
	NodeRetry       = "retry"
	NodeDone        = "workflow_done"

	// NodePaused marks an item stopped short without an explicit stop
	// stage. Runs paused at a caller-chosen stop record "stage:<stop>"
	// instead.
	NodePaused = "paused"
)

// PausedNode names the workflow_current_node value recorded when a run
// stops at stop without having failed.
func PausedNode(stop pipeline.Stage) string {
	return "stage:" + string(stop)
}

var stageNodes = map[pipeline.Stage]string{
	pipeline.StageExtraction:  NodeExtraction,
	pipeline.StageIMDb:        NodeIMDb,
	pipeline.StageTitleES:     NodeTitleES,
	pipeline.StageOMDb:        NodeOMDb,
	pipeline.StageTranslation: NodeTranslation,
}

// NodeForStage maps a stage to its graph node name.
func NodeForStage(stage pipeline.Stage) string {
	if node, ok := stageNodes[stage]; ok {
		return node
	}
	return string(stage)
}

// Edge is one directed hop in the static graph definition.
type Edge struct {
	From string
	To   string
}

// GraphDefinition describes the fixed topology for display purposes.
type GraphDefinition struct {
	Nodes []string
	Edges []Edge
}

// Definition returns the controller's static node topology: load and
// apply_action feed the stage chain, evaluate routes to retry (which
// loops back into the chain) or to workflow_done.
func Definition() GraphDefinition {
	nodes := []string{NodeLoad, NodeApplyAction}
	for _, stage := range pipeline.Order() {
		nodes = append(nodes, NodeForStage(stage))
	}
	nodes = append(nodes, NodeEvaluate, NodeRetry, NodeDone)

	edges := []Edge{
		{From: NodeLoad, To: NodeApplyAction},
		{From: NodeApplyAction, To: NodeExtraction},
	}
	order := pipeline.Order()
	for i := 0; i < len(order)-1; i++ {
		edges = append(edges, Edge{From: NodeForStage(order[i]), To: NodeForStage(order[i+1])})
	}
	edges = append(edges,
		Edge{From: NodeForStage(order[len(order)-1]), To: NodeEvaluate},
		Edge{From: NodeEvaluate, To: NodeRetry},
		Edge{From: NodeEvaluate, To: NodeDone},
	)
	m := pipeline.DefaultRetryMap()
	seen := make(map[pipeline.Stage]bool)
	for _, stage := range order {
		target := m.Target(stage)
		if !seen[target] {
			edges = append(edges, Edge{From: NodeRetry, To: NodeForStage(target)})
			seen[target] = true
		}
	}
	return GraphDefinition{Nodes: nodes, Edges: edges}
}
