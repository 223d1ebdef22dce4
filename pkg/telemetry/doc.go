// Package telemetry provides structured logging for stackpilot.
//
// The Logger wraps zerolog for progress and diagnostic output and
// additionally owns the raw byte streams that subprocess stdout and
// stderr are forwarded to while a provisioning command runs. Structured
// events and raw shell output are kept on separate writers so live
// command output stays readable.
//
// Loggers are injected explicitly: every component that issues commands
// receives its Logger through its constructor, never through a package
// global.
package telemetry
