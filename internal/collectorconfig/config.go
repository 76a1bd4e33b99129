// Package collectorconfig defines rlog-collector's configuration shape and
// defaults, grounded on rlog-collector/src/config.rs.
package collectorconfig

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level collector configuration.
type Config struct {
	// InputBufferSize bounds the queue feeding the batcher, before
	// aggregation.
	InputBufferSize int `yaml:"collector_input_buffer_size"`
	// QuickwitOutputBufferSize bounds the queue of completed batches
	// awaiting an indexer send.
	QuickwitOutputBufferSize int `yaml:"collector_quickwit_output_buffer_size"`
	// QuickwitBatchSize is the number of entries a batch accumulates
	// before it is flushed early.
	QuickwitBatchSize int `yaml:"collector_quickwit_batch_size"`
	// QuickwitBatchMaxInterval is the longest a partial batch may sit
	// before being flushed anyway.
	QuickwitBatchMaxInterval Duration `yaml:"collector_quickwit_batch_max_interval"`
}

// Duration wraps time.Duration with YAML (de)serialization as a
// human-readable string ("1s", "500ms"), the Go equivalent of the
// original's humantime_serde field adapter.
type Duration time.Duration

// UnmarshalYAML parses a humantime-style duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns a Config at its documented defaults.
func Default() Config {
	return Config{
		InputBufferSize:          1000,
		QuickwitOutputBufferSize: 100,
		QuickwitBatchSize:        100,
		QuickwitBatchMaxInterval: Duration(time.Second),
	}
}

// Parse decodes a collector config YAML document, starting from Default()
// so every field keeps its documented default when absent.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse collector config")
	}
	return &cfg, nil
}
