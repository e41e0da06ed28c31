package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	"git.home.luguber.info/inful/docdeploy/internal/deploy"
	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/docdeploy/internal/logfields"
)

// BuildCmd implements the 'build' command. It needs no credentials.
type BuildCmd struct {
	Stamp bool `help:"Write build-info.json into the output even if build.stamp is off"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	settings, err := config.LoadSettingsOnly(root.loadOptions(g))
	if err != nil {
		return err
	}

	builder := g.Components.withDefaults().NewBuilder(settings, g.Logger)
	res, err := builder.Build(ctx)
	if err != nil {
		return ferrors.BuildError("site build failed").
			WithCause(err).
			WithStage(string(deploy.StageBuildSite)).
			Build()
	}

	if b.Stamp || settings.Build.Stamp {
		path, digest, err := deploy.StampOutput(uuid.NewString(), settings.Build.Workdir, res.OutputDir, time.Now())
		if err != nil {
			return ferrors.BuildError("write build stamp").
				WithCause(err).
				WithStage(string(deploy.StageBuildSite)).
				Build()
		}
		g.Logger.Info("Build stamp written", logfields.Path(path), logfields.Digest(digest))
	}

	_, _ = fmt.Fprintf(g.Stdout, "Documentation site built in %s\n", res.OutputDir)
	return nil
}
