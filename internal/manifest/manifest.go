// Package manifest writes the build stamp placed next to the generated site.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
)

// FileName is the stamp written into the site output directory.
const FileName = "build-info.json"

// BuildInfo records which run produced a site and from which sources.
type BuildInfo struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Source    *SourceInfo `json:"source,omitempty"`
}

// SourceInfo describes the git checkout the site was built from.
type SourceInfo struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// New assembles a BuildInfo for the run. Source is left nil when workdir is
// not inside a git repository.
func New(runID, toolVersion, workdir string, now time.Time) (*BuildInfo, error) {
	info := &BuildInfo{
		ID:        runID,
		Timestamp: now.UTC(),
		Version:   toolVersion,
	}
	src, err := DetectSource(workdir)
	if err != nil {
		return nil, err
	}
	info.Source = src
	return info, nil
}

// DetectSource inspects the repository containing dir. It returns nil, nil
// when there is no repository.
func DetectSource(dir string) (*SourceInfo, error) {
	repository, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	ref, err := repository.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	src := &SourceInfo{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		src.Branch = ref.Name().Short()
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}
	src.Dirty = !status.IsClean()
	return src, nil
}

// ToJSON serializes the stamp exactly as Write stores it.
func (b *BuildInfo) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal build info: %w", err)
	}
	return append(data, '\n'), nil
}

// Hash returns the hex SHA-256 of the stamp file contents, so it can be
// checked against sha256sum on the server.
func (b *BuildInfo) Hash() (string, error) {
	data, err := b.ToJSON()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// Write stores the stamp as FileName inside outputDir and returns its path.
func Write(outputDir string, info *BuildInfo) (string, error) {
	data, err := info.ToJSON()
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", FileName, err)
	}
	return path, nil
}
