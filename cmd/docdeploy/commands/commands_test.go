package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	"git.home.luguber.info/inful/docdeploy/internal/deploy"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
	"git.home.luguber.info/inful/docdeploy/internal/sitebuild"
	"git.home.luguber.info/inful/docdeploy/internal/version"
)

type stubSession struct {
	user     string
	commands []string
	missing  bool
}

func (s *stubSession) Run(_ context.Context, command string) (remote.Result, error) {
	s.commands = append(s.commands, command)
	res := remote.Result{Command: command}
	if s.missing && strings.HasPrefix(command, "test -d ") {
		res.ExitStatus = 1
		return res, &remote.CommandError{Result: res}
	}
	return res, nil
}

func (s *stubSession) User() string { return s.user }
func (s *stubSession) Close() error { return nil }

type stubDialer struct {
	sessions map[string]*stubSession
	dials    int
}

func (d *stubDialer) Dial(_ context.Context, creds remote.Credentials) (remote.Session, error) {
	d.dials++
	if s, ok := d.sessions[creds.User]; ok {
		return s, nil
	}
	return nil, errors.New("ssh: unable to authenticate as " + creds.User)
}

type stubCopier struct {
	err   error
	calls int
}

func (c *stubCopier) Copy(context.Context, deploy.CopyRequest) error {
	c.calls++
	return c.err
}

type stubBuilder struct {
	outputDir string
	err       error
}

func (b *stubBuilder) Build(context.Context) (sitebuild.Result, error) {
	if b.err != nil {
		return sitebuild.Result{}, b.err
	}
	return sitebuild.Result{OutputDir: b.outputDir}, nil
}

type env struct {
	vars       map[string]string
	privileged *stubSession
	dialer     *stubDialer
	copier     *stubCopier
	builder    *stubBuilder
	settings   string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	require.NoError(t, os.MkdirAll(site, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("docs"), 0o600))

	settings := filepath.Join(dir, "docdeploy.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("build:\n  workdir: "+dir+"\n  output_dir: site\n"), 0o600))

	e := &env{
		vars: map[string]string{
			config.EnvHost:         "docs.example.com",
			config.EnvUser:         "deploy",
			config.EnvPassword:     "deploy-pw",
			config.EnvRootPassword: "root-pw",
			config.EnvTargetDir:    "/var/www/docs",
		},
		privileged: &stubSession{user: "root"},
		copier:     &stubCopier{},
		builder:    &stubBuilder{outputDir: site},
		settings:   settings,
	}
	e.dialer = &stubDialer{sessions: map[string]*stubSession{
		"deploy": {user: "deploy"},
		"root":   e.privileged,
	}}
	return e
}

func (e *env) run(args ...string) int {
	g := &Global{
		Logger: slog.New(slog.DiscardHandler),
		Stdout: &e.stdout,
		Stderr: &e.stderr,
		Lookup: func(key string) (string, bool) {
			v, ok := e.vars[key]
			return v, ok
		},
		Components: Components{
			NewBuilder: func(*config.Settings, *slog.Logger) sitebuild.Builder { return e.builder },
			NewDialer:  func(*config.Config, *slog.Logger) (remote.Dialer, error) { return e.dialer, nil },
			NewCopier:  func(*config.Config, *slog.Logger) (deploy.Copier, error) { return e.copier, nil },
		},
	}
	return Main(context.Background(), append([]string{"--config", e.settings}, args...), g)
}

func TestDeploySuccessPrintsCompletionMessage(t *testing.T) {
	e := newEnv(t)

	code := e.run()
	require.Equal(t, 0, code, e.stderr.String())
	assert.Equal(t, SuccessMessage+"\n", e.stdout.String())
	assert.Equal(t, 1, e.copier.calls)
	assert.Contains(t, e.privileged.commands, "chown -R www-data:www-data /var/www/docs")
}

func TestDeployMissingEnvironmentExitsOne(t *testing.T) {
	e := newEnv(t)
	delete(e.vars, config.EnvHost)
	delete(e.vars, config.EnvRootPassword)

	code := e.run("deploy")
	assert.Equal(t, 1, code)
	assert.Empty(t, e.stdout.String())
	assert.Contains(t, e.stderr.String(), config.EnvHost)
	assert.Contains(t, e.stderr.String(), config.EnvRootPassword)
	assert.Equal(t, 0, e.dialer.dials)
}

func TestDeployBuildFailureExitsOneWithoutConnecting(t *testing.T) {
	e := newEnv(t)
	e.builder.err = sitebuild.ErrBuildFailed

	code := e.run("deploy")
	assert.Equal(t, 1, code)
	assert.Equal(t, 0, e.dialer.dials)
	assert.Contains(t, e.stderr.String(), "build_site")
	assert.NotContains(t, e.stdout.String(), SuccessMessage)
}

func TestDeployCopyFailureExitsOne(t *testing.T) {
	e := newEnv(t)
	e.copier.err = deploy.ErrCopyFailed

	code := e.run("deploy")
	assert.Equal(t, 1, code)
	assert.NotContains(t, e.privileged.commands, "chown -R www-data:www-data /var/www/docs")
	assert.NotContains(t, e.stdout.String(), SuccessMessage)
}

func TestDeployWritesMetricsFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "docdeploy.prom")

	code := e.run("deploy", "--metrics-file", path)
	require.Equal(t, 0, code, e.stderr.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docdeploy_run_outcomes_total{outcome="success"} 1`)
	assert.Contains(t, string(data), `docdeploy_stage_results_total{result="success",stage="transfer"} 1`)
}

func TestDeployWritesMetricsFileOnConfigFailure(t *testing.T) {
	e := newEnv(t)
	e.vars = map[string]string{}
	path := filepath.Join(t.TempDir(), "docdeploy.prom")

	assert.Equal(t, 1, e.run("deploy", "--metrics-file", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docdeploy_run_outcomes_total{outcome="failed"} 1`)
}

func TestBuildCommandNeedsNoCredentials(t *testing.T) {
	e := newEnv(t)
	e.vars = map[string]string{}

	code := e.run("build")
	require.Equal(t, 0, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "Documentation site built in "+e.builder.outputDir)
	assert.Equal(t, 0, e.dialer.dials)
}

func TestCheckCommandReportsTarget(t *testing.T) {
	e := newEnv(t)
	e.privileged.missing = true

	code := e.run("check")
	require.Equal(t, 0, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "target /var/www/docs does not exist yet")
	assert.Equal(t, 0, e.copier.calls)
	assert.Equal(t, []string{"test -d /var/www/docs"}, e.privileged.commands)
}

func TestVersionFlag(t *testing.T) {
	e := newEnv(t)
	code := e.run("--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, e.stdout.String(), version.String())
	assert.Equal(t, 0, e.dialer.dials)
}

func TestExplicitMissingSettingsFileFails(t *testing.T) {
	e := newEnv(t)
	e.settings = filepath.Join(t.TempDir(), "nope.yaml")
	assert.Equal(t, 1, e.run("deploy"))
	assert.Equal(t, 0, e.dialer.dials)
}

func TestUnknownFlagFails(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, 1, e.run("--no-such-flag"))
}
