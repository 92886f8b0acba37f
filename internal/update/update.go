// Package update checks GitHub Releases for newer devwatch builds and
// replaces the running binary.
package update

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	selfupdate "github.com/creativeprojects/go-selfupdate"
)

// Repo is the GitHub slug devwatch releases are published under.
const Repo = "justinpbarnett/devwatch"

const (
	checkTimeout = 10 * time.Second
	applyTimeout = 2 * time.Minute
)

var ErrDevBuild = errors.New("cannot update a development build; install from a release first")

// Release describes a published release.
type Release struct {
	Version      string
	URL          string
	ReleaseNotes string
}

// latestRelease looks up the newest release for repo; replaced in tests.
var latestRelease = func(ctx context.Context, repo string) (*Release, bool, error) {
	updater, err := newUpdater()
	if err != nil {
		return nil, false, err
	}
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil || !found {
		return nil, found, err
	}
	return &Release{Version: latest.Version(), URL: latest.URL, ReleaseNotes: latest.ReleaseNotes}, true, nil
}

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("create github source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}
	return updater, nil
}

// IsDevBuild reports whether version came from an untagged build.
func IsDevBuild(version string) bool {
	return version == "" || version == "dev"
}

// CheckForUpdate returns the latest release if it is newer than
// currentVersion, or nil. Dev builds and unparseable versions are never
// checked.
func CheckForUpdate(ctx context.Context, currentVersion, repo string) (*Release, error) {
	if IsDevBuild(currentVersion) {
		return nil, nil
	}
	current, err := parseSemver(currentVersion)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	rel, found, err := latestRelease(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("detect latest release: %w", err)
	}
	if !found {
		return nil, nil
	}

	latest, err := parseSemver(rel.Version)
	if err != nil || !latest.GreaterThan(current) {
		return nil, nil
	}
	return rel, nil
}

// Apply downloads the latest release and replaces the current executable.
func Apply(ctx context.Context, currentVersion, repo string) (*Release, error) {
	if IsDevBuild(currentVersion) {
		return nil, ErrDevBuild
	}

	updater, err := newUpdater()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, applyTimeout)
	defer cancel()

	rel, err := updater.UpdateSelf(ctx, strings.TrimPrefix(currentVersion, "v"), selfupdate.ParseSlug(repo))
	if err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}
	return &Release{Version: rel.Version(), URL: rel.URL, ReleaseNotes: rel.ReleaseNotes}, nil
}

// CompareVersions returns -1, 0 or 1 as current is older than, equal to or
// newer than latest. An unparseable version sorts below any valid one.
func CompareVersions(current, latest string) int {
	cv, errC := parseSemver(current)
	lv, errL := parseSemver(latest)

	switch {
	case errC != nil && errL != nil:
		return 0
	case errC != nil:
		return -1
	case errL != nil:
		return 1
	}
	return cv.Compare(lv)
}

// parseSemver accepts a leading "v" and git-describe suffixes such as
// "0.3.0-4-gabc123", which parse as prereleases of the base version.
func parseSemver(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}
