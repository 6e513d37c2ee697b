// Command snaplapse captures periodic desktop screenshots, drops consecutive
// duplicates, and assembles each day's screenshots into a timelapse video.
//
// "snaplapse start" launches the background daemon; the other subcommands
// talk to it over a Unix socket in the state directory. Commands that only
// need the filesystem (list, assemble, backlog, open) also work while the
// daemon is stopped.
package main
