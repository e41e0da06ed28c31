// Package sitebuild runs the external static-site generator.
package sitebuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
)

// Builder produces the static site that is later transferred to the host.
type Builder interface {
	Build(ctx context.Context) (Result, error)
}

// Result describes a completed build.
type Result struct {
	OutputDir string
	Duration  time.Duration
	Stdout    string
	Stderr    string
}

// Options configures a BinaryBuilder.
type Options struct {
	// Command is the argv of the generator, e.g. ["mkdocs", "build"].
	Command []string
	// Workdir is where the command runs. Empty means the current directory.
	Workdir string
	// OutputDir is the generated site; relative paths resolve against Workdir.
	OutputDir string
}

// BinaryBuilder invokes an external generator binary. Success is decided by the
// exit status alone.
type BinaryBuilder struct {
	opts   Options
	logger *slog.Logger
}

// NewBinaryBuilder returns a builder for opts.
func NewBinaryBuilder(opts Options, logger *slog.Logger) *BinaryBuilder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BinaryBuilder{opts: opts, logger: logger}
}

// OutputPath returns the absolute-or-workdir-relative output directory.
func (o Options) OutputPath() string {
	if filepath.IsAbs(o.OutputDir) || o.Workdir == "" {
		return o.OutputDir
	}
	return filepath.Join(o.Workdir, o.OutputDir)
}

func (b *BinaryBuilder) Build(ctx context.Context) (Result, error) {
	result := Result{OutputDir: b.opts.OutputPath()}
	if len(b.opts.Command) == 0 {
		return result, fmt.Errorf("%w: empty build command", ErrBuildToolNotFound)
	}

	tool, err := exec.LookPath(b.opts.Command[0])
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrBuildToolNotFound, err)
	}

	cmd := exec.CommandContext(ctx, tool, b.opts.Command[1:]...)
	cmd.Dir = b.opts.Workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	commandLine := strings.Join(b.opts.Command, " ")
	b.logger.Info("Building documentation site", logfields.Command(commandLine), logfields.Path(b.opts.Workdir))

	start := time.Now()
	err = cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if out := strings.TrimSpace(result.Stdout); out != "" {
		b.logger.Debug("Build tool stdout", logfields.Stdout(out))
	}
	if errOut := strings.TrimSpace(result.Stderr); errOut != "" {
		// mkdocs reports progress on stderr, so only escalate when the build failed.
		if err != nil {
			b.logger.Warn("Build tool stderr", logfields.Stderr(errOut))
		} else {
			b.logger.Debug("Build tool stderr", logfields.Stderr(errOut))
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("site build interrupted: %w", ctxErr)
		}
		output := combineOutput(result.Stdout, result.Stderr)
		if output != "" {
			return result, fmt.Errorf("%w: %w: %s", ErrBuildFailed, err, output)
		}
		return result, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	info, statErr := os.Stat(result.OutputDir)
	switch {
	case errors.Is(statErr, os.ErrNotExist):
		return result, fmt.Errorf("%w: %s", ErrOutputMissing, result.OutputDir)
	case statErr != nil:
		return result, fmt.Errorf("stat site output: %w", statErr)
	case !info.IsDir():
		return result, fmt.Errorf("%w: %s is not a directory", ErrOutputMissing, result.OutputDir)
	}

	b.logger.Info("Documentation site built",
		logfields.OutputDir(result.OutputDir),
		logfields.Duration(result.Duration))
	return result, nil
}

func combineOutput(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return stdout + "\n" + stderr
	}
}
