// Package preflight provides readiness checks for the directories and
// external programs snaplapse depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "snaplapse status" command renders the same results. Checks never mutate
// anything.
package preflight
