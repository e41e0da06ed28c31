// Package errors provides the classified error type used across docdeploy.
//
// Every failure that reaches the CLI is a ClassifiedError (or wraps one) so the
// operator always learns which part of the run broke and why.
//
// Key features:
//   - ErrorCategory: taxonomy of failures (config, build, remote, transfer, ...)
//   - ErrorSeverity: impact level (fatal, error)
//   - ClassifiedError: category, message, cause and structured context
//   - ErrorBuilder: fluent construction
//   - CLIErrorAdapter: logging and exit-code mapping for the command line
//
// Example usage:
//
//	err := errors.RemoteError("could not prepare remote target directory").
//		WithCause(runErr).
//		WithStage("prepare_target").
//		Build()
package errors
