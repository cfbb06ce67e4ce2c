// Package syntax maps editor filetypes to a representative dummy filename so
// the engine can pick a language model for buffers without a path.
package syntax

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tabcomplete/logger"

	"github.com/jellydator/ttlcache/v3"
	"gopkg.in/yaml.v3"
)

// FakeProjectDir is the directory under the base dir holding dummy files
const FakeProjectDir = "fake_project"

var ErrUnknownSyntax = errors.New("no file extension known for filetype")

//go:embed extensions.yaml
var builtinExtensions []byte

// Table maps a filetype to its file extensions, most common first
type Table map[string][]string

// ParseTable decodes a YAML extension table
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse extension table: %w", err)
	}
	return t, nil
}

// Builtin returns the embedded extension table
func Builtin() Table {
	t, err := ParseTable(builtinExtensions)
	if err != nil {
		// The embedded table is part of the build
		panic(err)
	}
	return t
}

// Resolver resolves filetypes to dummy filenames under baseDir/fake_project.
// Lookups, including misses, are cached for ttl; entries from the optional
// user table are re-read once their cache entry expires.
type Resolver struct {
	baseDir  string
	userPath string
	builtin  Table
	cache    *ttlcache.Cache[string, string]
}

func NewResolver(baseDir, userPath string, ttl time.Duration) *Resolver {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &Resolver{
		baseDir:  baseDir,
		userPath: userPath,
		builtin:  Builtin(),
		cache:    c,
	}
}

// Close stops the cache expiration loop
func (r *Resolver) Close() {
	r.cache.Stop()
}

// DummyFile returns baseDir/fake_project/foo.<ext> for the filetype's
// primary extension.
func (r *Resolver) DummyFile(filetype string) (string, error) {
	filetype = strings.TrimSpace(filetype)
	if item := r.cache.Get(filetype); item != nil {
		if item.Value() == "" {
			return "", fmt.Errorf("%w: %q", ErrUnknownSyntax, filetype)
		}
		return item.Value(), nil
	}

	path := ""
	if ext, ok := r.extension(filetype); ok {
		path = filepath.Join(r.baseDir, FakeProjectDir, "foo."+ext)
	} else {
		logger.Debug("syntax: no extension for filetype %q", filetype)
	}
	r.cache.Set(filetype, path, ttlcache.DefaultTTL)

	if path == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownSyntax, filetype)
	}
	return path, nil
}

func (r *Resolver) extension(filetype string) (string, bool) {
	if filetype == "" {
		return "", false
	}
	if r.userPath != "" {
		user, err := r.loadUserTable()
		if err != nil {
			logger.Warn("syntax: %v", err)
		} else if exts := user[filetype]; len(exts) > 0 {
			return exts[0], true
		}
	}
	// Compound filetypes such as "javascript.jsx" fall back to their first part
	for _, ft := range []string{filetype, strings.SplitN(filetype, ".", 2)[0]} {
		if exts := r.builtin[ft]; len(exts) > 0 {
			return exts[0], true
		}
	}
	return "", false
}

func (r *Resolver) loadUserTable() (Table, error) {
	data, err := os.ReadFile(r.userPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.userPath, err)
	}
	return ParseTable(data)
}
