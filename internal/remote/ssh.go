package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
)

// SSHDialer opens sessions with golang.org/x/crypto/ssh.
type SSHDialer struct {
	opts   Options
	logger *slog.Logger

	hostKeysOnce    sync.Once
	hostKeyCallback ssh.HostKeyCallback
	hostKeyErr      error
}

// NewSSHDialer prepares a dialer. known_hosts is not touched until the first
// Dial; the host key callback is then built once so both sessions of a run
// share the same known_hosts view.
func NewSSHDialer(opts Options, logger *slog.Logger) (*SSHDialer, error) {
	if opts.Endpoint.Host == "" {
		return nil, errors.New("remote host is required")
	}
	if opts.Endpoint.Port == 0 {
		opts.Endpoint.Port = 22
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SSHDialer{opts: opts, logger: logger}, nil
}

func (d *SSHDialer) hostKeys() (ssh.HostKeyCallback, error) {
	d.hostKeysOnce.Do(func() {
		d.hostKeyCallback, d.hostKeyErr = NewHostKeyCallback(d.opts.HostKeyPolicy, d.opts.KnownHostsPath, d.logger)
	})
	return d.hostKeyCallback, d.hostKeyErr
}

// Dial connects and authenticates as creds.User using only the password.
func (d *SSHDialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	address := d.opts.Endpoint.Address()
	hostKeyCallback, err := d.hostKeys()
	if err != nil {
		return nil, fmt.Errorf("ssh %s: %w", address, err)
	}
	clientConfig := &ssh.ClientConfig{
		User: creds.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(answerWithPassword(creds.Password)),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.opts.ConnectTimeout,
	}

	d.logger.Debug("Connecting over SSH", logfields.Host(address), logfields.User(creds.User))

	dialer := net.Dialer{Timeout: d.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ssh dial %s: %w", address, ctxErr)
		}
		return nil, fmt.Errorf("ssh dial %s: %w", address, err)
	}
	if d.opts.ConnectTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.opts.ConnectTimeout))
	}

	// The handshake does not observe ctx on its own.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	stop()
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ssh handshake %s: %w", address, ctxErr)
		}
		return nil, fmt.Errorf("ssh handshake %s as %s: %w", address, creds.User, err)
	}
	_ = conn.SetDeadline(time.Time{})

	d.logger.Debug("SSH session established", logfields.Host(address), logfields.User(creds.User))
	return &sshSession{
		client: ssh.NewClient(clientConn, chans, reqs),
		user:   creds.User,
		logger: d.logger.With(logfields.User(creds.User)),
	}, nil
}

func answerWithPassword(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}
}

type sshSession struct {
	client *ssh.Client
	user   string
	logger *slog.Logger
}

func (s *sshSession) User() string { return s.user }

func (s *sshSession) Run(ctx context.Context, command string) (Result, error) {
	result := Result{Command: command}

	session, err := s.client.NewSession()
	if err != nil {
		return result, fmt.Errorf("open ssh channel: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	s.logger.Debug("Running remote command", logfields.Command(command))

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return result, fmt.Errorf("remote command %q interrupted: %w", command, ctx.Err())
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	s.logOutput(result)

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			s.logger.Debug("Remote command exited non-zero",
				logfields.Command(command), logfields.ExitStatus(result.ExitStatus))
			return result, &CommandError{Result: result}
		}
		return result, fmt.Errorf("run remote command %q: %w", command, runErr)
	}

	s.logger.Debug("Remote command completed", logfields.Command(command))
	return result, nil
}

// logOutput surfaces non-empty stdout at info and stderr at warn.
func (s *sshSession) logOutput(result Result) {
	if out := strings.TrimSpace(result.Stdout); out != "" {
		s.logger.Info("Remote command output", logfields.Command(result.Command), logfields.Stdout(out))
	}
	if errOut := strings.TrimSpace(result.Stderr); errOut != "" {
		s.logger.Warn("Remote command error output", logfields.Command(result.Command), logfields.Stderr(errOut))
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}
