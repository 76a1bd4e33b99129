package config

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrAbsoluteGlob is returned when the caller passes an absolute glob
// pattern to WatchDir.
var ErrAbsoluteGlob = errors.New("config: absolute glob pattern is not allowed")

// DirReloadInterval is how often a fragment directory is re-scanned.
const DirReloadInterval = 5 * time.Second

// DirReloadFunc builds a fresh T from the ordered list of fragment file
// contents, deep-merging in filename order (later fragments win on
// conflicting keys). It is supplied by the caller because the merge
// semantics are specific to each config type's YAML shape.
type DirReloadFunc[T any] func(fragments [][]byte) (*T, error)

// WatchDir glob-matches files directly under dir (non-recursive, e.g.
// "*.yml"), excludes dotfiles, sorts the matches by filename, reads them
// in that order, and hands the ordered byte slices to reload to build a
// merged snapshot. It polls every interval and swaps the store on every
// successful reload. WatchDir blocks until ctx is canceled.
func WatchDir[T any](ctx context.Context, dir, glob string, reload DirReloadFunc[T], store *Store[T], interval time.Duration, log *logrus.Entry) error {
	if filepath.IsAbs(glob) {
		return ErrAbsoluteGlob
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("config_dir", dir).WithField("config_glob", glob)

	pattern := filepath.Join(dir, glob)

	reloadOnce := func() {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.WithError(err).Error("invalid configuration glob pattern")
			return
		}
		var names []string
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), ".") {
				continue
			}
			names = append(names, m)
		}
		sort.Strings(names)

		fragments, err := readOrdered(names)
		if err != nil {
			log.WithError(err).Error("unable to read configuration fragment")
			return
		}

		cfg, err := reload(fragments)
		if err != nil {
			log.WithError(errors.Wrap(err, "merge config fragments")).Error("unable to parse configuration")
			return
		}
		store.swap(cfg)
		log.WithField("fragment_count", len(names)).Debug("reloaded configuration")
	}

	reloadOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reloadOnce()
		}
	}
}

func readOrdered(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		out = append(out, data)
	}
	return out, nil
}

// MergeYAMLMaps deep-merges a sequence of YAML documents into a single
// generic map, later documents winning on conflicting scalar keys and
// nested maps merging key-by-key - the Go equivalent of the original's
// `Extend` trait used by its fragment-directory loader. Callers typically
// re-marshal the result and unmarshal it into their concrete config type.
func MergeYAMLMaps(fragments [][]byte) (map[string]any, error) {
	root := map[string]any{}
	for _, frag := range fragments {
		var m map[string]any
		if err := yaml.Unmarshal(frag, &m); err != nil {
			return nil, err
		}
		deepMergeInto(root, m)
	}
	return root, nil
}

func deepMergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMergeInto(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
