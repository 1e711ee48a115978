// Package generation defines the language-generation collaborator interface.
// The engine sends it the raw message plus extracted-so-far context and
// receives a natural-language reply string; the engine itself never
// generates prose, only structured decisions. A failing generator never
// blocks extraction or reconciliation; the engine falls back to a canned
// acknowledgment built by Fallback.
package generation
