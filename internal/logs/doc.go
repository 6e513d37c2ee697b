// Package logs reads the daemon's JSON log files for `snaplapse logs`.
//
// Last returns the final lines of a file with bounded memory, Follow polls
// for appended lines until its context is cancelled, and Format renders one
// JSON record as a single console line.
package logs
