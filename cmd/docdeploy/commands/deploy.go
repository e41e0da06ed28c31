package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	"git.home.luguber.info/inful/docdeploy/internal/deploy"
	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/metrics"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	SkipBuild   bool   `name:"skip-build" help:"Deploy the existing output directory without running the build"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus textfile metrics to this path after the run" type:"path"`
}

func (d *DeployCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	var prom *metrics.PrometheusRecorder
	recorder := metrics.Recorder(metrics.NoopRecorder{})
	if d.MetricsFile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
		defer func() {
			if err := prom.WriteTextfile(d.MetricsFile); err != nil {
				g.Logger.Warn("Failed to write metrics file", logfields.Path(d.MetricsFile), logfields.Error(err))
			}
		}()
	}

	cfg, err := config.Load(root.loadOptions(g))
	if err != nil {
		recorder.IncRunOutcome(metrics.OutcomeFailed)
		return err
	}

	deployer, err := newDeployer(cfg, g)
	if err != nil {
		recorder.IncRunOutcome(metrics.OutcomeFailed)
		return err
	}

	if _, err := deployer.WithRecorder(recorder).Run(ctx, deploy.RunOptions{SkipBuild: d.SkipBuild}); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(g.Stdout, SuccessMessage)
	return nil
}
