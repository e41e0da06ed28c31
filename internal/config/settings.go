package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is read when no --config is given.
const DefaultSettingsFile = "docdeploy.yaml"

// Host key policies understood by the remote layer.
const (
	HostKeyAcceptNew = "accept-new"
	HostKeyStrict    = "strict"
	HostKeyInsecure  = "insecure"
)

// Optional environment overrides for settings.
const (
	EnvPort          = "DOCS_PORT"
	EnvRootUser      = "DOCS_ROOT_USER"
	EnvServeOwner    = "DOCS_SERVE_OWNER"
	EnvHostKeyPolicy = "DOCS_HOST_KEY_POLICY"
	EnvKnownHosts    = "DOCS_KNOWN_HOSTS"
)

// Settings holds the non-secret knobs of a deployment.
type Settings struct {
	Build    BuildSettings    `yaml:"build"`
	Remote   RemoteSettings   `yaml:"remote"`
	Transfer TransferSettings `yaml:"transfer"`
}

// BuildSettings describes the static-site build.
type BuildSettings struct {
	Command   []string `yaml:"command" validate:"min=1,dive,required"`
	Workdir   string   `yaml:"workdir" validate:"required"`
	OutputDir string   `yaml:"output_dir" validate:"required"`
	Stamp     bool     `yaml:"stamp"`
}

// RemoteSettings describes the SSH side.
type RemoteSettings struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	PrivilegedUser string        `yaml:"privileged_user" validate:"required,account"`
	DeployGroup    string        `yaml:"deploy_group" validate:"omitempty,account"`
	ServeOwner     string        `yaml:"serve_owner" validate:"required,owner"`
	HostKeyPolicy  string        `yaml:"host_key_policy" validate:"oneof=accept-new strict insecure"`
	KnownHosts     string        `yaml:"known_hosts" validate:"required_unless=HostKeyPolicy insecure"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// TransferSettings describes the copy tool.
type TransferSettings struct {
	SCPPath string `yaml:"scp_path" validate:"required"`
}

// DefaultSettings mirrors the historic behaviour: mkdocs into ./site, root for
// ownership fixes, www-data serving the result.
func DefaultSettings() *Settings {
	return &Settings{
		Build: BuildSettings{
			Command:   []string{"mkdocs", "build"},
			Workdir:   ".",
			OutputDir: "site",
		},
		Remote: RemoteSettings{
			Port:           22,
			PrivilegedUser: "root",
			ServeOwner:     "www-data:www-data",
			HostKeyPolicy:  HostKeyAcceptNew,
			KnownHosts:     "~/.ssh/known_hosts",
		},
		Transfer: TransferSettings{
			SCPPath: "scp",
		},
	}
}

// OutputPath is the build output directory resolved against the workdir.
func (s *Settings) OutputPath() string {
	if filepath.IsAbs(s.Build.OutputDir) {
		return s.Build.OutputDir
	}
	return filepath.Join(s.Build.Workdir, s.Build.OutputDir)
}

// LoadSettings reads path on top of DefaultSettings. A missing file is only an
// error when explicit is set. Unknown keys are rejected.
func LoadSettings(path string, explicit bool) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- settings path is operator input
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return settings, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return settings, nil
}

// ApplyEnvOverrides lets the environment override individual settings.
func (s *Settings) ApplyEnvOverrides(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvPort, err)
		}
		s.Remote.Port = port
	}
	if v, ok := lookup(EnvRootUser); ok && strings.TrimSpace(v) != "" {
		s.Remote.PrivilegedUser = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvServeOwner); ok && strings.TrimSpace(v) != "" {
		s.Remote.ServeOwner = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvHostKeyPolicy); ok && strings.TrimSpace(v) != "" {
		s.Remote.HostKeyPolicy = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvKnownHosts); ok && strings.TrimSpace(v) != "" {
		s.Remote.KnownHosts = strings.TrimSpace(v)
	}
	return nil
}

var accountPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		return accountPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("owner", func(fl validator.FieldLevel) bool {
		user, group, hasGroup := strings.Cut(fl.Field().String(), ":")
		if !accountPattern.MatchString(user) {
			return false
		}
		return !hasGroup || accountPattern.MatchString(group)
	})
	return v
}

// Validate checks the settings and reports every offending field.
func (s *Settings) Validate() error {
	var problems []string
	if err := settingsValidator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}
	if s.Remote.ConnectTimeout < 0 {
		problems = append(problems, "remote.connect_timeout must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	switch fe.Tag() {
	case "required", "required_unless":
		return field + " is required"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "owner":
		return fmt.Sprintf("%s %q must look like user or user:group", field, fe.Value())
	case "account":
		return fmt.Sprintf("%s %q is not a valid account name", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
