// Package binary locates the completion engine executable inside an install
// directory laid out as binaries/<version>/<platform triple>/<name>.
package binary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"tabcomplete/logger"
)

// BinariesDir is the subdirectory of the install directory holding versions
const BinariesDir = "binaries"

var (
	ErrNotFound            = errors.New("no engine binary found for this platform")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

type platform struct {
	goos   string
	goarch string
}

var platformPaths = map[platform]string{
	{"linux", "386"}:     "i686-unknown-linux-gnu/TabNine",
	{"linux", "amd64"}:   "x86_64-unknown-linux-gnu/TabNine",
	{"linux", "arm64"}:   "aarch64-unknown-linux-musl/TabNine",
	{"darwin", "amd64"}:  "x86_64-apple-darwin/TabNine",
	{"darwin", "arm64"}:  "aarch64-apple-darwin/TabNine",
	{"windows", "386"}:   "i686-pc-windows-gnu/TabNine.exe",
	{"windows", "amd64"}: "x86_64-pc-windows-gnu/TabNine.exe",
}

// PlatformPath returns the binary path relative to a version directory
func PlatformPath(goos, goarch string) (string, error) {
	p, ok := platformPaths[platform{goos, goarch}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return filepath.FromSlash(p), nil
}

// ParseSemver parses dotted integer components. Any component that is not
// an integer makes the whole version parse as empty, which sorts below every
// valid version.
func ParseSemver(s string) []int {
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return []int{}
		}
		out = append(out, n)
	}
	return out
}

// CompareVersions orders two version strings by their parsed components
func CompareVersions(a, b string) int {
	return slices.Compare(ParseSemver(a), ParseSemver(b))
}

// SortVersions sorts versions in place by parsed semantic version.
// The sort is stable so equal versions keep their directory order.
func SortVersions(versions []string, descending bool) {
	slices.SortStableFunc(versions, func(a, b string) int {
		if descending {
			return CompareVersions(b, a)
		}
		return CompareVersions(a, b)
	})
}

// Locate returns customPath when set, otherwise resolves the newest binary
// for the running platform under installDir.
func Locate(customPath, installDir string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	return Resolve(installDir, runtime.GOOS, runtime.GOARCH)
}

// Resolve walks the version directories under installDir/binaries from
// newest to oldest and returns the first one holding a binary for the given
// platform. The execute bit is added if missing.
func Resolve(installDir, goos, goarch string) (string, error) {
	rel, err := PlatformPath(goos, goarch)
	if err != nil {
		return "", err
	}

	binaryDir := filepath.Join(installDir, BinariesDir)
	entries, err := os.ReadDir(binaryDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	SortVersions(versions, true)

	for _, version := range versions {
		path := filepath.Join(binaryDir, version, rel)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := ensureExecutable(path, info.Mode()); err != nil {
			logger.Warn("could not mark %s executable: %v", path, err)
		}
		logger.Info("engine: using version %s", version)
		return path, nil
	}

	return "", fmt.Errorf("%w in %s", ErrNotFound, binaryDir)
}

func ensureExecutable(path string, mode os.FileMode) error {
	newMode := mode | 0o100
	if newMode == mode {
		return nil
	}
	return os.Chmod(path, newMode)
}
