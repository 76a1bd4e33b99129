package shipperconfig

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestDefaultSetsDocumentedBufferSizes(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.SyslogIn.Common.MaxBufferSize, DefaultBufferSize)
	assert.Equal(t, cfg.GelfIn.Common.MaxBufferSize, DefaultBufferSize)
	assert.Equal(t, cfg.GrpcOut.MaxBufferSize, DefaultBufferSize)
	assert.Equal(t, len(cfg.FilesIn), 0)
}

func TestParseOverridesOnlyProvidedFields(t *testing.T) {
	cfg, err := Parse([]byte(`
syslog_in:
  max_buffer_size: 50
`))
	assert.NilError(t, err)
	assert.Equal(t, cfg.SyslogIn.Common.MaxBufferSize, 50)
	assert.Equal(t, cfg.GelfIn.Common.MaxBufferSize, DefaultBufferSize)
}

func TestSyslogExclusionFilterCompilesProvidedPatterns(t *testing.T) {
	cfg, err := Parse([]byte(`
syslog_in:
  exclusion_filters:
    - appname: "^healthcheck$"
      message: "ping"
`))
	assert.NilError(t, err)
	assert.Equal(t, len(cfg.SyslogIn.ExclusionFilters), 1)
	f := cfg.SyslogIn.ExclusionFilters[0]
	assert.Check(t, f.AppName != nil)
	assert.Check(t, f.AppName.MatchString("healthcheck"))
	assert.Check(t, f.Message != nil)
	assert.Check(t, f.Facility == nil)
}

func TestSyslogExclusionFilterRejectsInvalidPattern(t *testing.T) {
	_, err := Parse([]byte(`
syslog_in:
  exclusion_filters:
    - appname: "("
`))
	assert.ErrorContains(t, err, "compile appname exclusion pattern")
}

func TestFileParseConfigCompilesPattern(t *testing.T) {
	cfg, err := Parse([]byte(`
files_in:
  /var/log/app.log:
    pattern: '^(?P<ts>\S+) (?P<level>\S+) (?P<msg>.*)$'
    mapping:
      - name: ts
        type: timestamp
      - name: level
        type: syslog_level_text
      - name: msg
        type: string
`))
	assert.NilError(t, err)
	fc, ok := cfg.FilesIn["/var/log/app.log"]
	assert.Check(t, ok)
	assert.Check(t, fc.Regexp != nil)
	assert.Equal(t, len(fc.Mapping), 3)
}

func TestFileParseConfigRejectsInvalidPattern(t *testing.T) {
	_, err := Parse([]byte(`
files_in:
  /var/log/bad.log:
    pattern: '('
`))
	assert.ErrorContains(t, err, "compile pattern")
}
