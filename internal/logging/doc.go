// Package logging builds the slog loggers used across the engine.
//
// Two handler formats are supported: a human-oriented console handler
// (timestamp, level, component, run/stage subject, key=value attrs) and a
// machine-oriented JSON handler. The "auto" format selects console on a TTY
// and JSON otherwise.
//
// Standardized field keys (FieldRunID, FieldStage, FieldSection, ...) keep
// log output greppable; WithContext derives those fields from context values
// set by the services package.
package logging
