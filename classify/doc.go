// Package classify resolves each incoming message to exactly one flow. The
// classifier is a pure decision function over the message text and a view of
// the session state; ambiguous or purely conversational messages resolve to
// GeneralQuery, never to "none". Trigger phrases are configuration, not
// hard-coded behavior.
package classify
