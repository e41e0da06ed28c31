package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
)

// Preparation records what Prepare found and did.
type Preparation struct {
	Existed bool
}

// Preparer brings the remote target directory into a known empty state owned
// by the deploy account.
type Preparer struct {
	privileged remote.Session
	deploy     remote.Session
	target     string
	owner      string
	logger     *slog.Logger
}

// NewPreparer returns a Preparer. owner is the user:group given the target
// before the transfer.
func NewPreparer(privileged, deploy remote.Session, target, owner string, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Preparer{
		privileged: privileged,
		deploy:     deploy,
		target:     target,
		owner:      owner,
		logger:     logger.With(logfields.TargetDir(target)),
	}
}

// TargetExists probes the target with the privileged session. Exit status 1
// means absent; any other failure is an error.
func TargetExists(ctx context.Context, session remote.Session, target string) (bool, error) {
	_, err := session.Run(ctx, probeDirCommand(target))
	if err == nil {
		return true, nil
	}
	if status, ok := remote.ExitStatus(err); ok && status == 1 {
		return false, nil
	}
	return false, fmt.Errorf("probe target directory: %w", err)
}

// Prepare creates the target when absent or empties it when present, gives it
// to the deploy account and checks the deploy session can write to it.
func (p *Preparer) Prepare(ctx context.Context) (Preparation, error) {
	var prep Preparation
	if err := ValidateTarget(p.target); err != nil {
		return prep, err
	}

	exists, err := TargetExists(ctx, p.privileged, p.target)
	if err != nil {
		return prep, err
	}
	prep.Existed = exists

	if exists {
		p.logger.Info("Clearing existing target directory")
		if _, err := p.privileged.Run(ctx, clearDirCommand(p.target)); err != nil {
			return prep, fmt.Errorf("clear target directory: %w", err)
		}
	} else {
		p.logger.Info("Creating target directory")
		if _, err := p.privileged.Run(ctx, makeDirCommand(p.target)); err != nil {
			return prep, fmt.Errorf("create target directory: %w", err)
		}
	}

	if _, err := p.privileged.Run(ctx, chownCommand(p.owner, p.target)); err != nil {
		return prep, fmt.Errorf("chown target directory to %s: %w", p.owner, err)
	}

	if _, err := p.deploy.Run(ctx, writableCommand(p.target)); err != nil {
		return prep, fmt.Errorf("target directory not writable by %s: %w", p.deploy.User(), err)
	}

	p.logger.Info("Target directory ready", slog.String("owner", p.owner), slog.Bool("existed", exists))
	return prep, nil
}

// FinalizeOwnership hands the transferred tree to the serving account.
func FinalizeOwnership(ctx context.Context, privileged remote.Session, target, serveOwner string, logger *slog.Logger) error {
	if _, err := privileged.Run(ctx, chownRecursiveCommand(serveOwner, target)); err != nil {
		return fmt.Errorf("chown -R %s: %w", serveOwner, err)
	}
	if logger != nil {
		logger.Info("Serving ownership applied", logfields.TargetDir(target), slog.String("owner", serveOwner))
	}
	return nil
}
