package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docdeploy/internal/config"
)

// CheckCmd implements the 'check' command: both logins and a read-only probe
// of the target directory.
type CheckCmd struct{}

func (c *CheckCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := config.Load(root.loadOptions(g))
	if err != nil {
		return err
	}
	deployer, err := newDeployer(cfg, g)
	if err != nil {
		return err
	}
	report, err := deployer.Check(ctx)
	if err != nil {
		return err
	}

	state := "does not exist yet"
	if report.TargetExisted {
		state = "exists"
	}
	_, _ = fmt.Fprintf(g.Stdout, "Logged in to %s as %s and %s; target %s %s\n",
		cfg.Deployment.Host, cfg.Deployment.DeployUser, cfg.Deployment.PrivilegedUser,
		cfg.Deployment.TargetDir, state)
	return nil
}
