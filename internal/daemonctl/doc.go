// Package daemonctl launches, stops, and inspects the daemon process on
// behalf of the CLI. When the daemon is offline it assembles status and
// bucket listings straight from disk.
package daemonctl
