// Package config loads the deployment configuration: credentials and paths
// from the environment (optionally seeded from a .env file) and non-secret
// settings from an optional YAML file.
package config

import (
	"os"

	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
)

// Config is everything one deployment run needs.
type Config struct {
	Deployment *DeploymentConfig
	Settings   *Settings
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	EnvFile              string
	EnvFileExplicit      bool
	SettingsFile         string
	SettingsFileExplicit bool
	// Lookup defaults to os.LookupEnv.
	Lookup LookupFunc
}

// LoadSettingsOnly reads the settings file and environment overrides without
// requiring any credentials. The build command uses it.
func LoadSettingsOnly(opts LoadOptions) (*Settings, error) {
	if _, err := LoadEnvFile(opts.EnvFile, opts.EnvFileExplicit); err != nil {
		return nil, ferrors.ConfigError("load env file").WithCause(err).Build()
	}
	settings, err := LoadSettings(opts.SettingsFile, opts.SettingsFileExplicit)
	if err != nil {
		return nil, ferrors.ConfigError("load settings").WithCause(err).Build()
	}
	if err := settings.ApplyEnvOverrides(opts.lookup()); err != nil {
		return nil, ferrors.ValidationError("apply environment overrides").WithCause(err).Build()
	}
	if err := settings.Validate(); err != nil {
		return nil, ferrors.ValidationError("validate settings").WithCause(err).Build()
	}
	return settings, nil
}

// Load reads settings and the required deployment keys. Missing keys are
// reported together in a config error wrapping *MissingKeysError.
func Load(opts LoadOptions) (*Config, error) {
	settings, err := LoadSettingsOnly(opts)
	if err != nil {
		return nil, err
	}

	deployment, err := LoadDeployment(opts.lookup())
	if err != nil {
		builder := ferrors.ConfigError("load deployment credentials").WithCause(err)
		if missing, ok := err.(*MissingKeysError); ok {
			builder = builder.WithContext("missing", missing.Keys)
		}
		return nil, builder.Build()
	}
	deployment.PrivilegedUser = settings.Remote.PrivilegedUser

	return &Config{Deployment: deployment, Settings: settings}, nil
}

func (o LoadOptions) lookup() LookupFunc {
	if o.Lookup != nil {
		return o.Lookup
	}
	return os.LookupEnv
}
