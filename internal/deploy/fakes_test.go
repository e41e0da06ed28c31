package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	"git.home.luguber.info/inful/docdeploy/internal/metrics"
	"git.home.luguber.info/inful/docdeploy/internal/remote"
	"git.home.luguber.info/inful/docdeploy/internal/sitebuild"
)

const testTarget = "/var/www/docs"

type fakeSession struct {
	user     string
	mu       sync.Mutex
	commands []string
	// statuses maps a command to the exit status it should report.
	statuses map[string]int
	failures map[string]error
	closed   bool
	closeErr error
}

func newFakeSession(user string) *fakeSession {
	return &fakeSession{user: user, statuses: map[string]int{}, failures: map[string]error{}}
}

func (s *fakeSession) Run(ctx context.Context, command string) (remote.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	if err := ctx.Err(); err != nil {
		return remote.Result{Command: command}, err
	}
	if err, ok := s.failures[command]; ok {
		return remote.Result{Command: command}, err
	}
	res := remote.Result{Command: command, ExitStatus: s.statuses[command]}
	if res.ExitStatus != 0 {
		return res, &remote.CommandError{Result: res}
	}
	return res, nil
}

func (s *fakeSession) User() string { return s.user }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSession) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

type fakeDialer struct {
	sessions map[string]*fakeSession
	errs     map[string]error
	dials    []remote.Credentials
}

func newFakeDialer(sessions ...*fakeSession) *fakeDialer {
	d := &fakeDialer{sessions: map[string]*fakeSession{}, errs: map[string]error{}}
	for _, s := range sessions {
		d.sessions[s.user] = s
	}
	return d
}

func (d *fakeDialer) Dial(ctx context.Context, creds remote.Credentials) (remote.Session, error) {
	d.dials = append(d.dials, creds)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := d.errs[creds.User]; ok {
		return nil, err
	}
	s, ok := d.sessions[creds.User]
	if !ok {
		return nil, errors.New("unexpected user " + creds.User)
	}
	return s, nil
}

type fakeCopier struct {
	requests []CopyRequest
	err      error
}

func (c *fakeCopier) Copy(_ context.Context, req CopyRequest) error {
	c.requests = append(c.requests, req)
	return c.err
}

type fakeBuilder struct {
	outputDir string
	err       error
	calls     int
}

func (b *fakeBuilder) Build(context.Context) (sitebuild.Result, error) {
	b.calls++
	if b.err != nil {
		return sitebuild.Result{}, b.err
	}
	return sitebuild.Result{OutputDir: b.outputDir, Duration: time.Millisecond}, nil
}

type recordingRecorder struct {
	stageResults map[string]metrics.ResultLabel
	outcomes     []metrics.OutcomeLabel
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{stageResults: map[string]metrics.ResultLabel{}}
}

func (r *recordingRecorder) ObserveStageDuration(string, time.Duration) {}
func (r *recordingRecorder) IncStageResult(stage string, result metrics.ResultLabel) {
	r.stageResults[stage] = result
}
func (r *recordingRecorder) ObserveRunDuration(time.Duration) {}
func (r *recordingRecorder) IncRunOutcome(o metrics.OutcomeLabel) {
	r.outcomes = append(r.outcomes, o)
}

// siteDir creates a build output directory with one page.
func siteDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>docs</h1>"), 0o600))
	return dir
}

func testConfig(outputDir string) *config.Config {
	settings := config.DefaultSettings()
	settings.Build.Workdir = filepath.Dir(outputDir)
	settings.Build.OutputDir = outputDir
	return &config.Config{
		Deployment: &config.DeploymentConfig{
			Host:               "docs.example.com",
			DeployUser:         "deploy",
			DeployPassword:     "deploy-pw",
			PrivilegedUser:     "root",
			PrivilegedPassword: "root-pw",
			TargetDir:          testTarget,
		},
		Settings: settings,
	}
}

type harness struct {
	cfg        *config.Config
	deploy     *fakeSession
	privileged *fakeSession
	dialer     *fakeDialer
	copier     *fakeCopier
	builder    *fakeBuilder
	recorder   *recordingRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := siteDir(t)
	h := &harness{
		cfg:        testConfig(out),
		deploy:     newFakeSession("deploy"),
		privileged: newFakeSession("root"),
		copier:     &fakeCopier{},
		builder:    &fakeBuilder{outputDir: out},
		recorder:   newRecordingRecorder(),
	}
	h.dialer = newFakeDialer(h.deploy, h.privileged)
	return h
}

func (h *harness) deployer() *Deployer {
	return NewDeployer(h.cfg, nil).
		WithBuilder(h.builder).
		WithDialer(h.dialer).
		WithCopier(h.copier).
		WithRecorder(h.recorder)
}
