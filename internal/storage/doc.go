// Package storage owns the on-disk layout of captured screenshots and
// assembled timelapses.
//
// Screenshots live under <root>/screenshots/YYYY-MM-DD/screenshot_HHMMSS.jpg
// and artifacts under <root>/timelapses/timelapse_YYYY-MM-DD.mp4. Filename
// order inside a bucket is chronological order; nothing else records it.
package storage
