// Package types defines the base value types shared across the transport
// core: peer identifiers and addresses, the wire message, and the sentinel
// errors every orchestrator reports through.
//
// This is the lowest-level package in the module — it depends on nothing
// else internal to kadtransport so that every other package can import it
// without risk of a cycle.
package types
