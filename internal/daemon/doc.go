// Package daemon coordinates the long-running snaplapse process.
//
// It owns the process-wide context, the periodic and hotkey capture tasks,
// the start-up backlog pass, and the commands the CLI reaches over IPC.
// A flock-based lock in the state directory prevents two daemons from
// writing into the same screenshot root.
//
// Capture decisions live in the dedup package and video assembly in the
// timelapse package; the daemon only schedules them.
package daemon
