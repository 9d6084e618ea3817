// Package segment holds committed segment summaries and the registry that
// assigns segment identifiers.
//
// Creation follows a reserve / build / commit protocol:
//
//	id, _ := reg.Reserve()          // short critical section
//	f, _ := build(...)              // no registry lock held
//	reg.Append(NewSummary(id, ...)) // short critical section
//
// A build that fails calls Fail(id); the identifier is never reused and no
// summary ever appears for it.
//
// The registry sequence is kept in completion order. Two builds running at
// once may commit out of identifier order, so callers look summaries up with
// Find rather than by position.
package segment
