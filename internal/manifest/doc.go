// Package manifest keeps a SQLite index of assembled timelapse artifacts.
//
// The index is advisory. Artifact files on disk remain the only completion
// marker; records exist so listings and status can report frame counts and
// run details without probing every video.
package manifest
