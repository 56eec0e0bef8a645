// Package dispatch routes inbound frames to command handlers.
//
// Every frame walks the same path:
//
//	Received -> Parsed -> Validated -> Dispatched -> Replied
//
// and any step may end in a rejection instead. Envelope errors are answered
// on the connection without a messageContextId. Rate limiting, unknown
// commands and payload validation failures are answered with a FAILURE reply
// that echoes the messageContextId. A handler that returns an error or panics
// is answered with a generic ERROR reply; the details only reach the log.
//
// The dispatcher keeps no cross-message state besides per-connection rate
// limiters. Callers serialize frames of one connection by dispatching them
// from that connection's read loop.
package dispatch
