// Package shipperconfig defines rlog-shipper's configuration shape and
// defaults, grounded on rlog-shipper/src/config.rs and log_file.rs.
package shipperconfig

import (
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBufferSize is the default bounded-queue capacity for every
// ingress and the gRPC egress: allocated once at startup and not
// hot-reloadable.
const DefaultBufferSize = 20000

// Config is the top-level shipper configuration.
type Config struct {
	SyslogIn SyslogInputConfig          `yaml:"syslog_in"`
	GelfIn   GelfInputConfig            `yaml:"gelf_in"`
	GrpcOut  GrpcOutConfig              `yaml:"grpc_out"`
	FilesIn  map[string]FileParseConfig `yaml:"files_in"`
}

// Default returns a Config with every sub-config at its documented
// default, matching the original's per-struct #[derive(Default)].
func Default() Config {
	return Config{
		SyslogIn: SyslogInputConfig{Common: CommonInputConfig{MaxBufferSize: DefaultBufferSize}},
		GelfIn:   GelfInputConfig{Common: CommonInputConfig{MaxBufferSize: DefaultBufferSize}},
		GrpcOut:  GrpcOutConfig{MaxBufferSize: DefaultBufferSize},
		FilesIn:  map[string]FileParseConfig{},
	}
}

// CommonInputConfig is shared by every ingress's buffer sizing.
type CommonInputConfig struct {
	MaxBufferSize int `yaml:"max_buffer_size"`
}

// GrpcOutConfig configures the egress queue.
type GrpcOutConfig struct {
	MaxBufferSize int `yaml:"max_buffer_size"`
}

// SyslogInputConfig configures the syslog UDP ingress.
type SyslogInputConfig struct {
	Common           CommonInputConfig       `yaml:",inline"`
	ExclusionFilters []SyslogExclusionFilter `yaml:"exclusion_filters"`
}

// SyslogExclusionFilter drops matching records before they reach the
// queue. Within a filter, every populated pattern that applies to the
// record must match. Only the first filter of the configured list is ever
// evaluated - this observable behavior is preserved deliberately, not a
// bug to fix here.
type SyslogExclusionFilter struct {
	AppName  *regexp.Regexp `yaml:"-"`
	Facility *regexp.Regexp `yaml:"-"`
	Message  *regexp.Regexp `yaml:"-"`

	AppNamePattern  string `yaml:"appname"`
	FacilityPattern string `yaml:"facility"`
	MessagePattern  string `yaml:"message"`
}

// UnmarshalYAML compiles the three optional regex patterns, matching the
// original's `serde_regex` field adapter.
func (f *SyslogExclusionFilter) UnmarshalYAML(value *yaml.Node) error {
	type raw SyslogExclusionFilter
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*f = SyslogExclusionFilter(r)
	var err error
	if f.AppNamePattern != "" {
		if f.AppName, err = regexp.Compile(f.AppNamePattern); err != nil {
			return errors.Wrap(err, "compile appname exclusion pattern")
		}
	}
	if f.FacilityPattern != "" {
		if f.Facility, err = regexp.Compile(f.FacilityPattern); err != nil {
			return errors.Wrap(err, "compile facility exclusion pattern")
		}
	}
	if f.MessagePattern != "" {
		if f.Message, err = regexp.Compile(f.MessagePattern); err != nil {
			return errors.Wrap(err, "compile message exclusion pattern")
		}
	}
	return nil
}

// GelfInputConfig configures the GELF TCP ingress.
type GelfInputConfig struct {
	Common CommonInputConfig `yaml:",inline"`
}

// FieldType is the typed coercion applied to a file tailer capture group
// that is not one of the recognized field names.
type FieldType string

const (
	FieldTypeString         FieldType = "string"
	FieldTypeTimestamp      FieldType = "timestamp"
	FieldTypeNumber         FieldType = "number"
	FieldTypeSyslogLevelText FieldType = "syslog_level_text"
)

// FieldMapping names the i-th regex capture group and how to coerce it.
type FieldMapping struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`
}

// FileParseConfig describes how one tailed file's lines are parsed into a
// generic log record. Only the Regex mode exists today,
// mirroring the original's single-variant FileParseConfig enum.
type FileParseConfig struct {
	Pattern      string            `yaml:"pattern"`
	Mapping      []FieldMapping    `yaml:"mapping"`
	StaticFields map[string]string `yaml:"static_fields"`

	Regexp *regexp.Regexp `yaml:"-"`
}

// UnmarshalYAML compiles Pattern into Regexp.
func (c *FileParseConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw FileParseConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*c = FileParseConfig(r)
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return errors.Wrapf(err, "compile pattern %q", c.Pattern)
	}
	c.Regexp = re
	return nil
}

// Parse decodes a shipper config YAML document, starting from Default()
// so every field keeps its documented default when absent.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse shipper config")
	}
	return &cfg, nil
}
