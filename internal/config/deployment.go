package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Required environment keys. They are never defaulted.
const (
	EnvHost         = "DOCS_HOST"
	EnvUser         = "DOCS_USER"
	EnvPassword     = "DOCS_PASSWORD"
	EnvRootPassword = "DOCS_ROOT_PASSWORD"
	EnvTargetDir    = "DOCS_TARGET_DIR"
)

// RequiredKeys lists the required environment keys in reporting order.
var RequiredKeys = []string{EnvHost, EnvUser, EnvPassword, EnvRootPassword, EnvTargetDir}

// LookupFunc reads one environment value. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// DeploymentConfig holds the connection parameters for one run. It is built
// once at startup and never modified afterwards.
type DeploymentConfig struct {
	Host               string
	DeployUser         string
	DeployPassword     string // #nosec G117 -- runtime-only credential, never persisted
	PrivilegedUser     string
	PrivilegedPassword string // #nosec G117 -- runtime-only credential, never persisted
	TargetDir          string
}

// LogValue keeps passwords out of logs.
func (c DeploymentConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.String("deploy_user", c.DeployUser),
		slog.String("privileged_user", c.PrivilegedUser),
		slog.String("target_dir", c.TargetDir),
	)
}

// MissingKeysError lists every required key absent from the environment.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Keys, ", "))
}

// LoadDeployment reads the required keys through lookup. Empty values count as
// missing, and all missing keys are reported together. PrivilegedUser is left
// for the caller to fill from settings.
func LoadDeployment(lookup LookupFunc) (*DeploymentConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := make(map[string]string, len(RequiredKeys))
	var missing []string
	for _, key := range RequiredKeys {
		value, ok := lookup(key)
		if !ok || value == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = value
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Keys: missing}
	}

	return &DeploymentConfig{
		Host:               values[EnvHost],
		DeployUser:         values[EnvUser],
		DeployPassword:     values[EnvPassword],
		PrivilegedPassword: values[EnvRootPassword],
		TargetDir:          values[EnvTargetDir],
	}, nil
}
