package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/creack/pty"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
)

var (
	// ErrCopyToolNotFound is returned when the scp binary is not on PATH.
	ErrCopyToolNotFound = errors.New("copy tool not found")
	// ErrCopyFailed is returned when the copy tool exits non-zero.
	ErrCopyFailed = errors.New("copy failed")
	// ErrPasswordRejected is returned when the copy tool prompts a second time.
	ErrPasswordRejected = errors.New("password rejected by remote host")
	// ErrEmptyOutput is returned when there is nothing to copy.
	ErrEmptyOutput = errors.New("site output directory is empty")
)

// CopyRequest describes one transfer.
type CopyRequest struct {
	SourceDir   string
	TargetDir   string
	Credentials remote.Credentials
}

// Copier transfers the build output to the remote target directory.
type Copier interface {
	Copy(ctx context.Context, req CopyRequest) error
}

// SCPOptions configures an SCPCopier.
type SCPOptions struct {
	Path           string
	Endpoint       remote.Endpoint
	HostKeyPolicy  remote.HostKeyPolicy
	KnownHostsPath string
}

// SCPCopier drives scp under a pseudo-terminal and answers its password prompt.
// The password is only ever written to the terminal.
type SCPCopier struct {
	opts   SCPOptions
	logger *slog.Logger
}

// NewSCPCopier returns a copier using the scp binary at opts.Path.
func NewSCPCopier(opts SCPOptions, logger *slog.Logger) *SCPCopier {
	if opts.Path == "" {
		opts.Path = "scp"
	}
	if opts.Endpoint.Port == 0 {
		opts.Endpoint.Port = 22
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SCPCopier{opts: opts, logger: logger}
}

// HostKeyOptions maps a host key policy onto ssh -o options for scp.
func HostKeyOptions(policy remote.HostKeyPolicy, knownHosts string) []string {
	switch policy {
	case remote.HostKeyStrict:
		return []string{"-o", "StrictHostKeyChecking=yes", "-o", "UserKnownHostsFile=" + knownHosts}
	case remote.HostKeyInsecure:
		return []string{"-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null"}
	default:
		return []string{"-o", "StrictHostKeyChecking=accept-new", "-o", "UserKnownHostsFile=" + knownHosts}
	}
}

// Args builds the scp argument list for entries.
func (c *SCPCopier) Args(entries []string, req CopyRequest) []string {
	args := []string{
		"-r",
		"-P", strconv.Itoa(c.opts.Endpoint.Port),
		"-o", "PubkeyAuthentication=no",
		"-o", "PreferredAuthentications=password,keyboard-interactive",
		"-o", "NumberOfPasswordPrompts=1",
	}
	args = append(args, HostKeyOptions(c.opts.HostKeyPolicy, c.opts.KnownHostsPath)...)
	args = append(args, entries...)
	return append(args, remoteSpec(req.Credentials.User, c.opts.Endpoint.Host, req.TargetDir))
}

func remoteSpec(user, host, target string) string {
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return user + "@" + host + ":" + target
}

// ListEntries returns the top-level entries of dir as paths, so the copy
// lands inside the target instead of nesting dir below it.
func ListEntries(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read site output: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyOutput, dir)
	}
	entries := make([]string, 0, len(items))
	for _, item := range items {
		entries = append(entries, filepath.Join(dir, item.Name()))
	}
	return entries, nil
}

func (c *SCPCopier) Copy(ctx context.Context, req CopyRequest) error {
	entries, err := ListEntries(req.SourceDir)
	if err != nil {
		return err
	}

	tool, err := exec.LookPath(c.opts.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyToolNotFound, err)
	}

	cmd := exec.CommandContext(ctx, tool, c.Args(entries, req)...)
	cmd.Cancel = func() error { return killProcessTree(cmd) }

	c.logger.Info("Copying site output",
		logfields.OutputDir(req.SourceDir),
		logfields.TargetDir(req.TargetDir),
		logfields.User(req.Credentials.User),
		slog.Int("entries", len(entries)))

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start %s: %w", c.opts.Path, err)
	}
	defer func() { _ = ptmx.Close() }()

	watcher := newPromptWatcher(ptmx, req.Credentials.Password)
	if readErr := watcher.run(ptmx); readErr != nil {
		return c.abort(ctx, cmd, watcher, req.Credentials.User, readErr)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("copy interrupted: %w", ctxErr)
	}

	transcript := watcher.Transcript()
	if transcript != "" {
		c.logger.Debug("Copy tool output", logfields.Stdout(transcript))
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if transcript != "" {
				return fmt.Errorf("%w: exit status %d: %s", ErrCopyFailed, exitErr.ExitCode(), transcript)
			}
			return fmt.Errorf("%w: exit status %d", ErrCopyFailed, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %w", ErrCopyFailed, waitErr)
	}
	if !watcher.answered {
		c.logger.Warn("Copy finished without a password prompt")
	}

	c.logger.Info("Site output copied", logfields.TargetDir(req.TargetDir))
	return nil
}

// abort stops the copy tool once its terminal can no longer be served. The
// tool may still be blocked at a prompt, so it is killed before the wait.
func (c *SCPCopier) abort(ctx context.Context, cmd *exec.Cmd, watcher *promptWatcher, user string, readErr error) error {
	_ = killProcessTree(cmd)
	_ = cmd.Wait()
	c.logger.Debug("Copy tool output", logfields.Stdout(watcher.Transcript()))

	if errors.Is(readErr, ErrPasswordRejected) {
		return fmt.Errorf("%w for %s", ErrPasswordRejected, user)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("copy interrupted: %w", ctxErr)
	}
	return fmt.Errorf("%w: read terminal: %w", ErrCopyFailed, readErr)
}
