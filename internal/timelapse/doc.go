// Package timelapse turns a date bucket's ordered screenshots into one MP4.
//
// The Assembler lists a bucket in filename order, takes the output geometry
// from the first decodable screenshot, and streams every frame into an
// Encoder. Output goes to a temporary file that is renamed into place only
// after the encoder finishes cleanly, so a partially written video never
// looks like a finished one. ScanAndBacklog walks every past bucket and
// assembles those without an artifact.
package timelapse
