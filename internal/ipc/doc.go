// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response types are plain DTOs so the wire format does not
// depend on daemon internals. Add new endpoints here rather than teaching the
// CLI about daemon types.
package ipc
