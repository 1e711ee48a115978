// Package engine orchestrates one conversational turn: classify the message
// to a flow, extract field values into the session's partial record, and
// reconcile the record into the store once it is complete. Turns are
// processed sequentially per session; nothing in the engine terminates a
// conversation; store and generation failures degrade to explicit soft
// replies.
package engine
