// Package logging is the process-wide leveled logger, a printf-style front
// end over log/slog.
//
// Debug, Info, Warn and Error log at their level; Fatal logs and exits.
// The level comes from LOG_LEVEL, or debug when DEBUG is truthy, and
// LOG_FORMAT=json selects the JSON handler. Configure replaces the output,
// which tests and the installer CLI use.
package logging
