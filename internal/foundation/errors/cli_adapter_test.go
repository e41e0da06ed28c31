package errors

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "config error", err: ConfigError("missing keys").Build(), expected: 1},
		{name: "build error", err: BuildError("mkdocs failed").Build(), expected: 1},
		{name: "remote error", err: RemoteError("chown failed").Build(), expected: 1},
		{name: "transfer error", err: TransferError("scp failed").Build(), expected: 1},
		{name: "unclassified error", err: stderrors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	cause := stderrors.New("exit status 2")

	tests := []struct {
		name     string
		verbose  bool
		err      error
		contains string
	}{
		{name: "nil error", err: nil, contains: ""},
		{name: "unclassified", err: stderrors.New("boom"), contains: "Error: boom"},
		{
			name:     "stage tag",
			err:      BuildError("site build failed").WithStage("build_site").WithCause(cause).Build(),
			contains: "Error (build_site): site build failed: exit status 2",
		},
		{
			name:     "category when no stage",
			err:      ConfigError("missing required environment variables").Build(),
			contains: "Error (config): [config] missing required environment variables",
		},
		{
			name:     "verbose shows full chain",
			verbose:  true,
			err:      RemoteError("chown").WithStage("prepare_target").WithCause(cause).Build(),
			contains: "[remote:prepare_target] chown: exit status 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewCLIErrorAdapter(tt.verbose, nil)
			got := adapter.FormatError(tt.err)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestCLIErrorAdapter_ReportLogsOnce(t *testing.T) {
	var logs, stderr bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	code := adapter.Report(&stderr, TransferError("copy failed").WithStage("transfer").Build())
	if code != 1 {
		t.Fatalf("Report() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error (transfer): [transfer:transfer] copy failed") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if strings.Count(logs.String(), "copy failed") != 1 {
		t.Errorf("expected exactly one log line, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "category=transfer") {
		t.Errorf("log missing category: %q", logs.String())
	}
	if !strings.Contains(logs.String(), "level=ERROR") || !strings.Contains(logs.String(), "severity=fatal") {
		t.Errorf("log missing level or severity: %q", logs.String())
	}
}
