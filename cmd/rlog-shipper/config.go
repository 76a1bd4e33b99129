package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"rlog/internal/config"
	"rlog/internal/shipperconfig"
)

// fragmentGlob is the non-absolute glob WatchDir matches fragment files
// with inside a configured directory, mirroring the "*.yml"
// convention exercised by internal/config's own tests.
const fragmentGlob = "*.yml"

// shipperConfigMerge deep-merges YAML fragments before parsing them as a
// shipperconfig.Config.
func shipperConfigMerge(fragments [][]byte) (*shipperconfig.Config, error) {
	merged, err := config.MergeYAMLMaps(fragments)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return shipperconfig.Parse(out)
}

// newShipperConfigStore synchronously loads path (a file, a fragment
// directory, or "" for the documented defaults) into a ready Store, and
// returns a watch func the caller should run in its own goroutine to keep
// reloading it. Queue capacities are read from the store once at startup
// and not re-sized on reload, so the initial load must complete before
// main wires up the pipeline - hence the synchronous bootstrap here,
// separate from the background watch loop.
func newShipperConfigStore(path string, log *logrus.Entry) (*config.Store[shipperconfig.Config], func(context.Context) error, error) {
	if path == "" {
		def := shipperconfig.Default()
		return config.NewStore(&def), func(ctx context.Context) error { <-ctx.Done(); return nil }, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stat --config path")
	}

	if info.IsDir() {
		fragments, err := readFragmentsSorted(path, fragmentGlob)
		if err != nil {
			return nil, nil, err
		}
		cfg, err := shipperConfigMerge(fragments)
		if err != nil {
			return nil, nil, err
		}
		store := config.NewStore(cfg)
		watch := func(ctx context.Context) error {
			return config.WatchDir(ctx, path, fragmentGlob, shipperConfigMerge, store, config.DirReloadInterval, log)
		}
		return store, watch, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read --config file")
	}
	cfg, err := shipperconfig.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	store := config.NewStore(cfg)
	watch := func(ctx context.Context) error {
		return config.WatchFile(ctx, path, shipperconfig.Parse, store, config.FileReloadInterval, log)
	}
	return store, watch, nil
}

// readFragmentsSorted reads every non-hidden file directly under dir
// matching glob, in filename order, matching config.WatchDir's own
// traversal so the synchronous bootstrap load agrees with later reloads.
func readFragmentsSorted(dir, glob string) ([][]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration glob pattern")
	}
	var names []string
	for _, m := range matches {
		if filepath.Base(m)[0] == '.' {
			continue
		}
		names = append(names, m)
	}
	sort.Strings(names)

	out := make([][]byte, 0, len(names))
	for _, p := range names {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		out = append(out, data)
	}
	return out, nil
}
