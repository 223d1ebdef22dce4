// Package target abstracts the execution surface provisioning commands
// run against.
//
// A Target is a local machine, a Docker container entered through
// docker exec, or a remote host reached over SSH. All three expose the
// same contract: strict and probing command execution with live output
// streaming, a file existence probe, and file delivery.
//
// Commands are structured argument vectors by default; raw shell
// strings are reserved for commands that genuinely need shell features
// (pipelines, &&-chains). Remote targets wrap commands through a shell
// with explicit quoting so argument boundaries survive the extra hop.
//
// Execution is strictly sequential: one command completes before the
// next is issued, and a started command runs to its own exit. The
// context passed to Run/Try gates issuing new work, not killing work
// already in flight.
package target
