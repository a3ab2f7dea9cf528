// Package workflow hosts the enrichment controller: a fixed graph of
// named nodes (load, apply_action, one node per stage, evaluate) driven
// by a retry supervisor. The controller owns every workflow_* column,
// persists one history event per transition, and escalates to manual
// review once the attempt budget is spent. Stage handlers only mutate
// their own output fields; routing decisions belong here.
package workflow
