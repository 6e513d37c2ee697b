// Package logging builds the slog loggers shared by the snaplapse daemon and CLI.
//
// It owns the console and JSON handlers, the standard field keys used in
// structured output, and helpers that keep warning and error lines shaped the
// same way everywhere (event type, hint, impact). Tests and wiring code that
// cannot fail use NewNop.
package logging
