// Package record defines persisted, flow-tagged records together with their
// deterministic identity keys, the store collaborator interface, and the
// reconciler that merges completed records into the store without creating
// duplicates.
package record
