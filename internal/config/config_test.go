package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

func parseTestConfig(data []byte) (*testConfig, error) {
	var c testConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	assert.NilError(t, os.WriteFile(path, []byte("name: a\nvalue: 1\n"), 0o644))

	store := NewStore(&testConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go WatchFile(ctx, path, parseTestConfig, store, 15*time.Millisecond, nil)

	waitUntil(t, func() bool { return store.Load().Name == "a" })
	assert.Equal(t, store.Load().Value, 1)

	future := time.Now().Add(time.Second)
	assert.NilError(t, os.WriteFile(path, []byte("name: b\nvalue: 2\n"), 0o644))
	assert.NilError(t, os.Chtimes(path, future, future))

	waitUntil(t, func() bool { return store.Load().Name == "b" })
	assert.Equal(t, store.Load().Value, 2)
}

func TestWatchDirRejectsAbsoluteGlob(t *testing.T) {
	store := NewStore(&testConfig{})
	err := WatchDir(context.Background(), "/tmp", "/etc/*.yml", func(f [][]byte) (*testConfig, error) {
		return &testConfig{}, nil
	}, store, time.Second, nil)
	assert.ErrorIs(t, err, ErrAbsoluteGlob)
}

func TestWatchDirMergesFragmentsInFilenameOrderAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, ".hidden.yml"), []byte("name: hidden\n"), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "01.yml"), []byte("name: first\nvalue: 1\n"), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "02.yml"), []byte("name: second\n"), 0o644))

	reload := func(fragments [][]byte) (*testConfig, error) {
		merged, err := MergeYAMLMaps(fragments)
		if err != nil {
			return nil, err
		}
		out, err := yaml.Marshal(merged)
		if err != nil {
			return nil, err
		}
		return parseTestConfig(out)
	}

	store := NewStore(&testConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = WatchDir(ctx, dir, "*.yml", reload, store, 15*time.Millisecond, nil)
	}()

	waitUntil(t, func() bool { return store.Load().Name == "second" })
	assert.Equal(t, store.Load().Value, 1)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
