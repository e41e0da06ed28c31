package sitebuild

import "errors"

var (
	// ErrBuildToolNotFound is returned when the configured build command is not on PATH.
	ErrBuildToolNotFound = errors.New("site build tool not found")
	// ErrBuildFailed is returned when the build command exits non-zero.
	ErrBuildFailed = errors.New("site build failed")
	// ErrOutputMissing is returned when a successful build left no output directory.
	ErrOutputMissing = errors.New("site output directory missing")
)
