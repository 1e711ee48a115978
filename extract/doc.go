// Package extract pulls structured field values out of free text for a
// resolved flow. It follows a "fill empty slots, don't clobber filled ones"
// merge policy; an explicit correction utterance is the one case allowed to
// overwrite, and values that fail kind validation are dropped silently
// rather than stored malformed.
package extract
