package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/manifest"
	"git.home.luguber.info/inful/docdeploy/internal/metrics"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
	"git.home.luguber.info/inful/docdeploy/internal/sitebuild"
	"git.home.luguber.info/inful/docdeploy/internal/version"
)

// RunOptions tweaks a single deployment run.
type RunOptions struct {
	// SkipBuild deploys the existing output directory as is.
	SkipBuild bool
}

// Deployer runs deployments for one configuration.
type Deployer struct {
	cfg      *config.Config
	builder  sitebuild.Builder
	dialer   remote.Dialer
	copier   Copier
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewDeployer returns a Deployer with a noop recorder. Builder, dialer and
// copier are injected with the With* methods.
func NewDeployer(cfg *config.Config, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deployer{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithBuilder sets the site builder.
func (d *Deployer) WithBuilder(b sitebuild.Builder) *Deployer {
	d.builder = b
	return d
}

// WithDialer sets the SSH dialer used for both sessions.
func (d *Deployer) WithDialer(dialer remote.Dialer) *Deployer {
	d.dialer = dialer
	return d
}

// WithCopier sets the transfer implementation.
func (d *Deployer) WithCopier(c Copier) *Deployer {
	d.copier = c
	return d
}

// WithRecorder sets the metrics recorder; nil keeps the noop recorder.
func (d *Deployer) WithRecorder(r metrics.Recorder) *Deployer {
	if r != nil {
		d.recorder = r
	}
	return d
}

// runState carries what one run accumulates between stages.
type runState struct {
	cfg       *config.Config
	report    *Report
	recorder  metrics.Recorder
	logger    *slog.Logger
	builder   sitebuild.Builder
	dialer    remote.Dialer
	copier    Copier
	skipBuild bool
	now       func() time.Time

	outputDir  string
	deploy     remote.Session
	privileged remote.Session
}

func (d *Deployer) newRunState(opts RunOptions) *runState {
	runID := d.newID()
	return &runState{
		cfg:       d.cfg,
		report:    newReport(runID, d.now()),
		recorder:  d.recorder,
		logger:    d.logger.With(logfields.RunID(runID)),
		builder:   d.builder,
		dialer:    d.dialer,
		copier:    d.copier,
		skipBuild: opts.SkipBuild,
		now:       d.now,
		outputDir: d.cfg.Settings.OutputPath(),
	}
}

// Run performs a full deployment. The report is returned even on failure.
func (d *Deployer) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if err := d.validate(!opts.SkipBuild); err != nil {
		return nil, err
	}
	rs := d.newRunState(opts)
	rs.logger.Info("Starting documentation deployment",
		slog.Any("deployment", d.cfg.Deployment),
		logfields.OutputDir(rs.outputDir))

	err := d.execute(ctx, rs, []StageDef{
		{StageBuildSite, stageBuildSite},
		{StageOpenSessions, stageOpenSessions},
		{StagePrepareTarget, stagePrepareTarget},
		{StageTransfer, stageTransfer},
		{StageFinalizeOwnership, stageFinalizeOwnership},
	})
	return rs.report, err
}

// Check opens both sessions and probes the target without changing anything.
func (d *Deployer) Check(ctx context.Context) (*Report, error) {
	if err := d.validate(false); err != nil {
		return nil, err
	}
	rs := d.newRunState(RunOptions{SkipBuild: true})
	err := d.execute(ctx, rs, []StageDef{
		{StageOpenSessions, stageOpenSessions},
		{StageInspectTarget, stageInspectTarget},
	})
	return rs.report, err
}

func (d *Deployer) execute(ctx context.Context, rs *runState, stages []StageDef) error {
	err := runStages(ctx, rs, stages)
	rs.closeSessions()
	rs.report.finish(err, d.now(), d.recorder)
	if err != nil {
		rs.logger.Debug("Run failed", slog.Any("report", rs.report))
		return err
	}
	rs.logger.Info("Run finished", slog.Any("report", rs.report))
	return nil
}

func (d *Deployer) validate(needBuilder bool) error {
	var missing []string
	if d.cfg == nil || d.cfg.Deployment == nil || d.cfg.Settings == nil {
		missing = append(missing, "config")
	}
	if d.dialer == nil {
		missing = append(missing, "dialer")
	}
	if d.copier == nil {
		missing = append(missing, "copier")
	}
	if needBuilder && d.builder == nil {
		missing = append(missing, "builder")
	}
	if len(missing) > 0 {
		return ferrors.InternalError("deployer is not fully configured").
			WithContext("missing", missing).
			Build()
	}
	return nil
}

// closeSessions closes whatever sessions were opened. Close failures are
// logged and never replace the run's error.
func (rs *runState) closeSessions() {
	for _, s := range []remote.Session{rs.deploy, rs.privileged} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			rs.logger.Warn("Failed to close SSH session", logfields.User(s.User()), logfields.Error(err))
		}
	}
	rs.deploy, rs.privileged = nil, nil
}

// DeployOwner is the user:group given the target before the transfer.
func DeployOwner(cfg *config.Config) string {
	group := cfg.Settings.Remote.DeployGroup
	if group == "" {
		group = cfg.Deployment.DeployUser
	}
	return cfg.Deployment.DeployUser + ":" + group
}

func stageBuildSite(ctx context.Context, rs *runState) error {
	if rs.skipBuild {
		info, err := os.Stat(rs.outputDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", sitebuild.ErrOutputMissing, rs.outputDir)
			}
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", sitebuild.ErrOutputMissing, rs.outputDir)
		}
		rs.logger.Info("Skipping site build", logfields.OutputDir(rs.outputDir))
	} else {
		res, err := rs.builder.Build(ctx)
		if err != nil {
			return err
		}
		rs.outputDir = res.OutputDir
	}

	if rs.cfg.Settings.Build.Stamp {
		path, digest, err := StampOutput(rs.report.RunID, rs.cfg.Settings.Build.Workdir, rs.outputDir, rs.now())
		if err != nil {
			return err
		}
		rs.logger.Info("Build stamp written", logfields.Path(path), logfields.Digest(digest))
	}
	return nil
}

// StampOutput writes the build-info stamp into outputDir and returns its path
// and SHA-256 digest.
func StampOutput(runID, workdir, outputDir string, now time.Time) (path, digest string, err error) {
	info, err := manifest.New(runID, version.Version, workdir, now)
	if err != nil {
		return "", "", fmt.Errorf("collect build info: %w", err)
	}
	digest, err = info.Hash()
	if err != nil {
		return "", "", err
	}
	path, err = manifest.Write(outputDir, info)
	if err != nil {
		return "", "", err
	}
	return path, digest, nil
}

func stageOpenSessions(ctx context.Context, rs *runState) error {
	dep := rs.cfg.Deployment
	deploySession, err := rs.dialer.Dial(ctx, remote.Credentials{User: dep.DeployUser, Password: dep.DeployPassword})
	if err != nil {
		return fmt.Errorf("open deploy session: %w", err)
	}
	rs.deploy = deploySession

	privileged, err := rs.dialer.Dial(ctx, remote.Credentials{User: dep.PrivilegedUser, Password: dep.PrivilegedPassword})
	if err != nil {
		return fmt.Errorf("open privileged session: %w", err)
	}
	rs.privileged = privileged

	rs.logger.Info("SSH sessions opened",
		logfields.Host(dep.Host),
		slog.String("deploy_user", dep.DeployUser),
		slog.String("privileged_user", dep.PrivilegedUser))
	return nil
}

func stagePrepareTarget(ctx context.Context, rs *runState) error {
	preparer := NewPreparer(rs.privileged, rs.deploy, rs.cfg.Deployment.TargetDir, DeployOwner(rs.cfg), rs.logger)
	prep, err := preparer.Prepare(ctx)
	rs.report.TargetExisted = prep.Existed
	return err
}

func stageTransfer(ctx context.Context, rs *runState) error {
	dep := rs.cfg.Deployment
	return rs.copier.Copy(ctx, CopyRequest{
		SourceDir:   rs.outputDir,
		TargetDir:   dep.TargetDir,
		Credentials: remote.Credentials{User: dep.DeployUser, Password: dep.DeployPassword},
	})
}

func stageFinalizeOwnership(ctx context.Context, rs *runState) error {
	return FinalizeOwnership(ctx, rs.privileged, rs.cfg.Deployment.TargetDir, rs.cfg.Settings.Remote.ServeOwner, rs.logger)
}

func stageInspectTarget(ctx context.Context, rs *runState) error {
	target := rs.cfg.Deployment.TargetDir
	if err := ValidateTarget(target); err != nil {
		return err
	}
	exists, err := TargetExists(ctx, rs.privileged, target)
	if err != nil {
		return err
	}
	rs.report.TargetExisted = exists
	rs.logger.Info("Target directory inspected", logfields.TargetDir(target), slog.Bool("exists", exists))
	return nil
}
