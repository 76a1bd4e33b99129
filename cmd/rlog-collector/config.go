package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"rlog/internal/collectorconfig"
	"rlog/internal/config"
)

// fragmentGlob mirrors the shipper's fragment-directory convention.
const fragmentGlob = "*.yml"

// collectorConfigMerge deep-merges YAML fragments before parsing them as a
// collectorconfig.Config.
func collectorConfigMerge(fragments [][]byte) (*collectorconfig.Config, error) {
	merged, err := config.MergeYAMLMaps(fragments)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return collectorconfig.Parse(out)
}

// newCollectorConfigStore is the collector-side analog of the shipper's
// newShipperConfigStore: it synchronously bootstraps path (a file, a
// fragment directory, or "" for documented defaults) into a ready Store,
// and returns a watch func to run in the background for ongoing reload.
func newCollectorConfigStore(path string, log *logrus.Entry) (*config.Store[collectorconfig.Config], func(context.Context) error, error) {
	if path == "" {
		def := collectorconfig.Default()
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
		cfg, err := collectorConfigMerge(fragments)
		if err != nil {
			return nil, nil, err
		}
		store := config.NewStore(cfg)
		watch := func(ctx context.Context) error {
			return config.WatchDir(ctx, path, fragmentGlob, collectorConfigMerge, store, config.DirReloadInterval, log)
		}
		return store, watch, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read --config file")
	}
	cfg, err := collectorconfig.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	store := config.NewStore(cfg)
	watch := func(ctx context.Context) error {
		return config.WatchFile(ctx, path, collectorconfig.Parse, store, config.FileReloadInterval, log)
	}
	return store, watch, nil
}

// readFragmentsSorted reads every non-hidden file directly under dir
// matching glob, in filename order.
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
