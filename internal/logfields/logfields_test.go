package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "123", RunID("123")},
		{"Stage", KeyStage, "transfer", Stage("transfer")},
		{"Host", KeyHost, "docs.example.org", Host("docs.example.org")},
		{"User", KeyUser, "deploy", User("deploy")},
		{"TargetDir", KeyTargetDir, "/var/www/docs", TargetDir("/var/www/docs")},
		{"OutputDir", KeyOutputDir, "site", OutputDir("site")},
		{"Command", KeyCommand, "test -d /x", Command("test -d /x")},
		{"Stdout", KeyStdout, "ok", Stdout("ok")},
		{"Stderr", KeyStderr, "denied", Stderr("denied")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Digest", KeyDigest, "ab12", Digest("ab12")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := ExitStatus(2); a.Key != KeyExitStatus || a.Value.Int64() != 2 {
		t.Fatalf("ExitStatus attr = %v", a)
	}
	if a := Duration(1500 * time.Millisecond); a.Key != KeyDurationMS || a.Value.Int64() != 1500 {
		t.Fatalf("Duration attr = %v", a)
	}
}
