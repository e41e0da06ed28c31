package deploy

import (
	"errors"
	"path"
	"strings"

	"github.com/alessio/shellescape"
)

// ErrUnsafeTarget is returned for target directories that must never be cleared.
var ErrUnsafeTarget = errors.New("unsafe target directory")

func quote(s string) string { return shellescape.Quote(s) }

func probeDirCommand(target string) string {
	return "test -d " + quote(target)
}

func makeDirCommand(target string) string {
	return "mkdir -p " + quote(target)
}

// clearDirCommand removes every entry below target, dotfiles included, while
// keeping target itself.
func clearDirCommand(target string) string {
	return "find " + quote(target) + " -mindepth 1 -maxdepth 1 -exec rm -rf -- {} +"
}

func chownCommand(owner, target string) string {
	return "chown " + quote(owner) + " " + quote(target)
}

func chownRecursiveCommand(owner, target string) string {
	return "chown -R " + quote(owner) + " " + quote(target)
}

func writableCommand(target string) string {
	return "test -w " + quote(target)
}

// ValidateTarget rejects targets whose clearing would wipe the filesystem root
// or the remote home directory, and home-relative targets written with ~.
func ValidateTarget(target string) error {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return errors.Join(ErrUnsafeTarget, errors.New("target directory is empty"))
	}
	switch path.Clean(trimmed) {
	case "/", ".", "~":
		return errors.Join(ErrUnsafeTarget, errors.New("refusing to manage "+trimmed))
	}
	// Quoted shell commands keep a leading ~ literal while scp expands it.
	if strings.HasPrefix(trimmed, "~") {
		return errors.Join(ErrUnsafeTarget, errors.New("target directory must not start with ~: "+trimmed))
	}
	return nil
}
