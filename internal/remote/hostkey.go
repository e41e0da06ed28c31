package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
)

// HostKeyPolicy selects how server host keys are verified.
type HostKeyPolicy string

const (
	HostKeyAcceptNew HostKeyPolicy = "accept-new"
	HostKeyStrict    HostKeyPolicy = "strict"
	HostKeyInsecure  HostKeyPolicy = "insecure"
)

// ParseHostKeyPolicy normalizes a policy name.
func ParseHostKeyPolicy(raw string) (HostKeyPolicy, error) {
	switch policy := HostKeyPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case HostKeyAcceptNew, HostKeyStrict, HostKeyInsecure:
		return policy, nil
	case "":
		return HostKeyAcceptNew, nil
	default:
		return "", fmt.Errorf("invalid host key policy %q, valid options: [accept-new insecure strict]", raw)
	}
}

// NewHostKeyCallback builds the ssh.HostKeyCallback for policy. The returned
// callback is safe to share between sessions.
func NewHostKeyCallback(policy HostKeyPolicy, knownHostsPath string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	switch policy {
	case HostKeyInsecure:
		return ssh.InsecureIgnoreHostKey(), nil // #nosec G106 -- explicitly selected host key policy
	case HostKeyStrict:
		callback, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			if err := callback(hostname, remote, key); err != nil {
				return fmt.Errorf("%w: %w", ErrHostKeyRejected, err)
			}
			return nil
		}, nil
	case HostKeyAcceptNew, "":
		return acceptNewCallback(knownHostsPath, logger)
	default:
		return nil, fmt.Errorf("unsupported host key policy %q", policy)
	}
}

func acceptNewCallback(path string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if err := ensureKnownHostsFile(path); err != nil {
		return nil, fmt.Errorf("prepare known_hosts file: %w", err)
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}

	var guard sync.Mutex
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		guard.Lock()
		defer guard.Unlock()

		callbackErr := callback(hostname, remote, key)
		if callbackErr == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(callbackErr, &keyErr) || len(keyErr.Want) > 0 {
			// A known host presenting a different key is never accepted.
			return fmt.Errorf("%w: %w", ErrHostKeyRejected, callbackErr)
		}

		if err := appendKnownHost(path, hostname, key); err != nil {
			return fmt.Errorf("store host key: %w", err)
		}
		reloaded, err := knownhosts.New(path)
		if err != nil {
			return fmt.Errorf("reload known_hosts: %w", err)
		}
		callback = reloaded

		if logger != nil {
			logger.Warn("Permanently added host key to known_hosts",
				logfields.Host(hostname),
				slog.String("key_type", key.Type()),
				slog.String("fingerprint", ssh.FingerprintSHA256(key)),
				logfields.Path(path))
		}
		return nil
	}, nil
}

func ensureKnownHostsFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o600) // #nosec G304 -- known_hosts path is operator input
	if err != nil {
		return err
	}
	return f.Close()
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600) // #nosec G304 -- known_hosts path is operator input
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
