// Package catalog persists catalog items and their workflow bookkeeping in
// SQLite.
//
// Stage handlers own their output columns; the workflow core owns the
// workflow_* columns and the bounded per-item history trail. All access goes
// through Store, which serializes writes per key via SQLite and retries on
// busy errors.
package catalog
