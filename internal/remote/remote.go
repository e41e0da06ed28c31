package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrCommandFailed indicates a remote command exited with a non-zero status.
	ErrCommandFailed = errors.New("remote command failed")
	// ErrHostKeyRejected indicates the server's host key did not pass the policy.
	ErrHostKeyRejected = errors.New("host key rejected")
)

// Credentials authenticate one session.
type Credentials struct {
	User     string
	Password string // #nosec G117 -- runtime-only credential
}

// Result is the captured outcome of one remote command.
type Result struct {
	Command    string
	Stdout     string
	Stderr     string
	ExitStatus int
}

// CommandError reports a command that ran but exited non-zero.
type CommandError struct {
	Result Result
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Result.Command, e.Result.ExitStatus)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		return msg + ": " + stderr
	}
	if stdout := strings.TrimSpace(e.Result.Stdout); stdout != "" {
		msg += ": " + stdout
	}
	return msg
}

func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// ExitStatus extracts the remote exit status from err, if it is a CommandError.
func ExitStatus(err error) (int, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Result.ExitStatus, true
	}
	return 0, false
}

// Session runs commands as one authenticated user.
type Session interface {
	// Run executes command and waits for it to finish.
	Run(ctx context.Context, command string) (Result, error)
	// User is the account the session authenticated as.
	User() string
	Close() error
}

// Dialer opens sessions against a single host.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Session, error)
}

// Endpoint is a resolved host and port.
type Endpoint struct {
	Host string
	Port int
}

// Address returns host:port suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint accepts "host", "host:port" or "[v6]:port". defaultPort
// applies when no port is given.
func ParseEndpoint(raw string, defaultPort int) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if host, port, err := net.SplitHostPort(raw); err == nil {
		if strings.TrimSpace(host) == "" {
			return Endpoint{}, errors.New("missing host")
		}
		portNumber, err := strconv.Atoi(port)
		if err != nil || portNumber < 1 || portNumber > 65535 {
			return Endpoint{}, fmt.Errorf("invalid port %q", port)
		}
		return Endpoint{Host: host, Port: portNumber}, nil
	}

	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	}
	if raw == "" {
		return Endpoint{}, errors.New("missing host")
	}
	return Endpoint{Host: raw, Port: defaultPort}, nil
}

// Options configures an SSHDialer.
type Options struct {
	Endpoint       Endpoint
	HostKeyPolicy  HostKeyPolicy
	KnownHostsPath string
	// ConnectTimeout bounds the TCP connect and SSH handshake; zero means none.
	ConnectTimeout time.Duration
}
