// Package schema defines the closed set of conversational flows and the
// per-flow field specifications used by the extraction and reconciliation
// layers. The Registry is immutable after construction and all of its
// operations are pure: completeness and kind validation never mutate the
// record under inspection.
package schema
