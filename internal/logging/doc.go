// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides a console handler with compact key=value output, a JSON handler
// for machine consumption, attribute helpers with standardized field names,
// and no-op loggers for tests.
package logging
