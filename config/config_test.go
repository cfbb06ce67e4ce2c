package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Empty(t *testing.T) {
	s, err := Parse("")
	require.NoError(t, err)

	assert.Nil(t, s.MaxNumResults, "unset max_num_results stays null")
	assert.Equal(t, DefaultLogLevel, s.LogLevel)
	assert.Equal(t, 5*time.Second, s.RequestTimeout())
	assert.Equal(t, 10*time.Minute, s.SyntaxCacheTTL())
	assert.NotEmpty(t, s.InstallDir)
}

func TestParse_JSON(t *testing.T) {
	s, err := Parse(`{
		"custom_binary_path": "/opt/engine",
		"log_file_path": "/tmp/engine.log",
		"extra_args": ["--foo", "bar"],
		"max_num_results": 5,
		"documentation": true,
		"detail": true,
		"request_timeout_ms": 250
	}`)
	require.NoError(t, err)

	assert.Equal(t, "/opt/engine", s.CustomBinaryPath)
	assert.Equal(t, "/tmp/engine.log", s.LogFilePath)
	assert.Equal(t, []string{"--foo", "bar"}, s.ExtraArgs)
	require.NotNil(t, s.MaxNumResults)
	assert.Equal(t, 5, *s.MaxNumResults)
	assert.True(t, s.Documentation)
	assert.True(t, s.Detail)
	assert.Equal(t, 250*time.Millisecond, s.RequestTimeout())
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse(`{not json`)
	assert.Error(t, err)
}

func TestParse_SettingsFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_num_results = 3
detail = true
extra_args = ["--x"]
`), 0644))

	s, err := Parse(`{"settings_file": "` + path + `", "documentation": true, "max_num_results": 7}`)
	require.NoError(t, err)

	require.NotNil(t, s.MaxNumResults)
	assert.Equal(t, 3, *s.MaxNumResults, "file overrides env")
	assert.True(t, s.Detail)
	assert.True(t, s.Documentation, "keys absent from the file are kept")
	assert.Equal(t, []string{"--x"}, s.ExtraArgs)
}

func TestParse_MissingSettingsFileIsIgnored(t *testing.T) {
	s, err := Parse(`{"settings_file": "/nonexistent/settings.toml", "detail": true}`)
	require.NoError(t, err)
	assert.True(t, s.Detail)
}

func TestParse_InvalidSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_num_results = "many"`), 0644))

	_, err := Parse(`{"settings_file": "` + path + `"}`)
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	n := 4
	s := &Settings{ExtraArgs: []string{"a"}, MaxNumResults: &n}
	c := s.Clone()

	c.ExtraArgs[0] = "b"
	*c.MaxNumResults = 9

	assert.Equal(t, "a", s.ExtraArgs[0])
	assert.Equal(t, 4, *s.MaxNumResults)
}

func TestWatch_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("detail = false\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	go Watch(ctx, path, func() { changed <- struct{}{} })

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("detail = true\n"), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("settings change not observed")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	go Watch(ctx, path, func() { changed <- struct{}{} })

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0644))

	select {
	case <-changed:
		t.Fatal("unrelated file triggered a change")
	case <-time.After(400 * time.Millisecond):
	}
}
