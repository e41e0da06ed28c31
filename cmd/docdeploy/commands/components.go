package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	"git.home.luguber.info/inful/docdeploy/internal/deploy"
	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
	"git.home.luguber.info/inful/docdeploy/internal/sitebuild"
)

// Components constructs the parts of a run that touch the outside world.
type Components struct {
	NewBuilder func(settings *config.Settings, logger *slog.Logger) sitebuild.Builder
	NewDialer  func(cfg *config.Config, logger *slog.Logger) (remote.Dialer, error)
	NewCopier  func(cfg *config.Config, logger *slog.Logger) (deploy.Copier, error)
}

// DefaultComponents returns the mkdocs/SSH/scp implementations.
func DefaultComponents() Components {
	return Components{
		NewBuilder: newBinaryBuilder,
		NewDialer:  newSSHDialer,
		NewCopier:  newSCPCopier,
	}
}

func (c Components) withDefaults() Components {
	def := DefaultComponents()
	if c.NewBuilder == nil {
		c.NewBuilder = def.NewBuilder
	}
	if c.NewDialer == nil {
		c.NewDialer = def.NewDialer
	}
	if c.NewCopier == nil {
		c.NewCopier = def.NewCopier
	}
	return c
}

func newBinaryBuilder(settings *config.Settings, logger *slog.Logger) sitebuild.Builder {
	return sitebuild.NewBinaryBuilder(sitebuild.Options{
		Command:   settings.Build.Command,
		Workdir:   settings.Build.Workdir,
		OutputDir: settings.Build.OutputDir,
	}, logger)
}

// remoteOptions resolves host, port and host key handling shared by the SSH
// sessions and scp.
func remoteOptions(cfg *config.Config) (remote.Options, error) {
	endpoint, err := remote.ParseEndpoint(cfg.Deployment.Host, cfg.Settings.Remote.Port)
	if err != nil {
		return remote.Options{}, ferrors.ConfigError("invalid " + config.EnvHost).WithCause(err).Build()
	}
	policy, err := remote.ParseHostKeyPolicy(cfg.Settings.Remote.HostKeyPolicy)
	if err != nil {
		return remote.Options{}, ferrors.ValidationError("invalid host key policy").WithCause(err).Build()
	}
	opts := remote.Options{
		Endpoint:       endpoint,
		HostKeyPolicy:  policy,
		ConnectTimeout: cfg.Settings.Remote.ConnectTimeout,
	}
	if policy != remote.HostKeyInsecure {
		path, err := config.ExpandHome(cfg.Settings.Remote.KnownHosts)
		if err != nil {
			return remote.Options{}, ferrors.ConfigError("resolve known_hosts path").WithCause(err).Build()
		}
		opts.KnownHostsPath = path
	}
	return opts, nil
}

func newSSHDialer(cfg *config.Config, logger *slog.Logger) (remote.Dialer, error) {
	opts, err := remoteOptions(cfg)
	if err != nil {
		return nil, err
	}
	dialer, err := remote.NewSSHDialer(opts, logger)
	if err != nil {
		return nil, ferrors.ConfigError("configure ssh").WithCause(err).Build()
	}
	return dialer, nil
}

func newSCPCopier(cfg *config.Config, logger *slog.Logger) (deploy.Copier, error) {
	opts, err := remoteOptions(cfg)
	if err != nil {
		return nil, err
	}
	return deploy.NewSCPCopier(deploy.SCPOptions{
		Path:           cfg.Settings.Transfer.SCPPath,
		Endpoint:       opts.Endpoint,
		HostKeyPolicy:  opts.HostKeyPolicy,
		KnownHostsPath: opts.KnownHostsPath,
	}, logger), nil
}

// newDeployer wires a Deployer from the configured components.
func newDeployer(cfg *config.Config, g *Global) (*deploy.Deployer, error) {
	comps := g.Components.withDefaults()
	dialer, err := comps.NewDialer(cfg, g.Logger)
	if err != nil {
		return nil, err
	}
	copier, err := comps.NewCopier(cfg, g.Logger)
	if err != nil {
		return nil, err
	}
	return deploy.NewDeployer(cfg, g.Logger).
		WithBuilder(comps.NewBuilder(cfg.Settings, g.Logger)).
		WithDialer(dialer).
		WithCopier(copier), nil
}
