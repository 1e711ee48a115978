// Package session implements the conversation state tracker: per-session
// partial records (at most one per flow) and the ordered turn history used
// as classification context. The tracker is pure storage; it holds no
// business logic beyond the invariant that Clear is the only operation that
// removes a partial record.
package session
