package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyHost       = "host"
	KeyUser       = "user"
	KeyTargetDir  = "target_dir"
	KeyOutputDir  = "output_dir"
	KeyCommand    = "command"
	KeyExitStatus = "exit_status"
	KeyStdout     = "stdout"
	KeyStderr     = "stderr"
	KeyPath       = "path"
	KeyDigest     = "sha256"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func Host(h string) slog.Attr            { return slog.String(KeyHost, h) }
func User(u string) slog.Attr            { return slog.String(KeyUser, u) }
func TargetDir(d string) slog.Attr       { return slog.String(KeyTargetDir, d) }
func OutputDir(d string) slog.Attr       { return slog.String(KeyOutputDir, d) }
func Command(c string) slog.Attr         { return slog.String(KeyCommand, c) }
func ExitStatus(code int) slog.Attr      { return slog.Int(KeyExitStatus, code) }
func Stdout(s string) slog.Attr          { return slog.String(KeyStdout, s) }
func Stderr(s string) slog.Attr          { return slog.String(KeyStderr, s) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Digest(d string) slog.Attr          { return slog.String(KeyDigest, d) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
