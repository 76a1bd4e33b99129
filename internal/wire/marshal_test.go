package wire

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSyslogLineRoundTrip(t *testing.T) {
	app := "sshd"
	pid := uint32(1234)
	ll := &LogLine{
		Host:      "web-01",
		Timestamp: Timestamp{Seconds: 1700000000, Nanos: 42},
		Line: &SyslogLine{
			Facility: FacilityAuth,
			Severity: SeverityWarning,
			AppName:  &app,
			ProcPID:  &pid,
			Msg:      "failed password for root",
		},
	}

	data, err := ll.Marshal()
	assert.NilError(t, err)

	var out LogLine
	assert.NilError(t, out.Unmarshal(data))

	assert.Equal(t, out.Host, ll.Host)
	assert.Equal(t, out.Timestamp, ll.Timestamp)

	sl, ok := out.Line.(*SyslogLine)
	assert.Check(t, ok)
	assert.Equal(t, sl.Facility, FacilityAuth)
	assert.Equal(t, sl.Severity, SeverityWarning)
	assert.Equal(t, *sl.AppName, app)
	assert.Equal(t, *sl.ProcPID, pid)
	assert.Equal(t, sl.Msg, "failed password for root")
}

func TestGelfLineRoundTrip(t *testing.T) {
	full := "full trace here"
	ll := &LogLine{
		Host:      "app-02",
		Timestamp: Timestamp{Seconds: 1700000001},
		Line: &GelfLine{
			ShortMessage: "boom",
			FullMessage:  &full,
			Severity:     3,
			Extra:        `{"service":"api"}`,
		},
	}

	data, err := ll.Marshal()
	assert.NilError(t, err)

	var out LogLine
	assert.NilError(t, out.Unmarshal(data))

	gl, ok := out.Line.(*GelfLine)
	assert.Check(t, ok)
	assert.Equal(t, gl.ShortMessage, "boom")
	assert.Equal(t, *gl.FullMessage, full)
	assert.Equal(t, gl.Severity, int32(3))
	assert.Equal(t, gl.Extra, `{"service":"api"}`)
}

func TestGenericLineRoundTrip(t *testing.T) {
	ll := &LogLine{
		Host:      "worker-09",
		Timestamp: Timestamp{Seconds: 1700000002},
		Line: &GenericLine{
			ServiceName: "billing",
			LogSystem:   "file_in",
			Severity:    SeverityError,
			Message:     "charge failed",
			Extra:       `{"order_id":"42"}`,
		},
	}

	data, err := ll.Marshal()
	assert.NilError(t, err)

	var out LogLine
	assert.NilError(t, out.Unmarshal(data))

	gl, ok := out.Line.(*GenericLine)
	assert.Check(t, ok)
	assert.Equal(t, gl.ServiceName, "billing")
	assert.Equal(t, gl.LogSystem, "file_in")
	assert.Equal(t, gl.Severity, SeverityError)
	assert.Equal(t, gl.Message, "charge failed")
}

func TestLogLineMissingVariantErrors(t *testing.T) {
	ll := &LogLine{Host: "x"}
	_, err := ll.Marshal()
	assert.ErrorIs(t, err, ErrNoLineVariant)
}

func TestMetricsRoundTrip(t *testing.T) {
	m := &Metrics{
		Hostname: "web-01",
		QueueCount: map[string]uint64{
			"syslog_in": 3,
			"gelf_in":   0,
		},
		ProcessedCount: map[string]uint64{"syslog_in": 10042},
		ErrorCount:     map[string]uint64{"syslog_in": 3},
	}

	data, err := m.Marshal()
	assert.NilError(t, err)

	var out Metrics
	assert.NilError(t, out.Unmarshal(data))

	assert.Equal(t, out.Hostname, "web-01")
	assert.Equal(t, out.QueueCount["syslog_in"], uint64(3))
	assert.Equal(t, out.ProcessedCount["syslog_in"], uint64(10042))
	assert.Equal(t, out.ErrorCount["syslog_in"], uint64(3))
}

func TestSeverityOTelMapping(t *testing.T) {
	cases := []struct {
		sev  SyslogSeverity
		text string
		num  int32
	}{
		{SeverityEmergency, "FATAL4", 24},
		{SeverityAlert, "FATAL3", 23},
		{SeverityCritical, "FATAL", 21},
		{SeverityError, "ERROR", 17},
		{SeverityWarning, "WARN", 13},
		{SeverityNotice, "INFO3", 11},
		{SeverityInfo, "INFO", 9},
		{SeverityDebug, "DEBUG", 5},
	}
	for _, c := range cases {
		got := c.sev.OTel()
		assert.Equal(t, got.Text, c.text)
		assert.Equal(t, got.Number, c.num)
	}
}

func TestFacilityName(t *testing.T) {
	assert.Equal(t, FacilityLocal3.Name(), "local3")
	assert.Equal(t, FacilityAuthpriv.Name(), "authpriv")
}

func TestSeverityFromName(t *testing.T) {
	assert.Equal(t, SeverityFromName("Warning"), SeverityWarning)
	assert.Equal(t, SeverityFromName("not-a-real-level"), SeverityInfo)
}
