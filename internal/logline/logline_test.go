package logline

import (
	"testing"

	"gotest.tools/v3/assert"

	"rlog/internal/wire"
)

func TestFromLogLineGelfFlattensExtraAndPullsServiceName(t *testing.T) {
	ll := &wire.LogLine{
		Host:      "host-a",
		Timestamp: wire.Timestamp{Seconds: 1000, Nanos: 500_000_000},
		Line: &wire.GelfLine{
			ShortMessage: "boom",
			Severity:     3,
			Extra:        `{"service":"checkout","_container_id":"abc"}`,
		},
	}

	entry, err := FromLogLine(ll)
	assert.NilError(t, err)
	assert.Equal(t, entry.Message, "boom")
	assert.Equal(t, entry.Hostname, "host-a")
	assert.Equal(t, entry.TimestampMS, uint64(1000500))
	assert.Equal(t, entry.ServiceName, "checkout")
	assert.Equal(t, entry.LogSystem, "gelf")
	_, stillPresent := entry.FreeFields["service"]
	assert.Check(t, !stillPresent)
	assert.Equal(t, entry.FreeFields["_container_id"], "abc")
}

func TestFromLogLineGelfPrefersFullMessage(t *testing.T) {
	full := "boom with stack trace"
	ll := &wire.LogLine{
		Line: &wire.GelfLine{ShortMessage: "boom", FullMessage: &full, Severity: 6},
	}
	entry, err := FromLogLine(ll)
	assert.NilError(t, err)
	assert.Equal(t, entry.Message, full)
}

func TestFromLogLineSyslogDefaultsServiceName(t *testing.T) {
	ll := &wire.LogLine{
		Host: "host-b",
		Line: &wire.SyslogLine{
			Facility: wire.FacilityDaemon,
			Severity: wire.SeverityWarning,
			Msg:      "disk nearly full",
		},
	}
	entry, err := FromLogLine(ll)
	assert.NilError(t, err)
	assert.Equal(t, entry.ServiceName, "_syslog")
	assert.Equal(t, entry.LogSystem, "syslog")
	assert.Equal(t, entry.FreeFields["facility"], "daemon")
}

func TestFromLogLineSyslogKeepsAppName(t *testing.T) {
	app := "sshd"
	pid := uint32(42)
	ll := &wire.LogLine{
		Line: &wire.SyslogLine{
			Facility: wire.FacilityAuth,
			Severity: wire.SeverityError,
			AppName:  &app,
			ProcPID:  &pid,
			Msg:      "auth failure",
		},
	}
	entry, err := FromLogLine(ll)
	assert.NilError(t, err)
	assert.Equal(t, entry.ServiceName, "sshd")
	assert.Equal(t, entry.FreeFields["proc_pid"], uint32(42))
}

func TestFromLogLineGenericDefaultsLogSystem(t *testing.T) {
	ll := &wire.LogLine{
		Line: &wire.GenericLine{
			ServiceName: "billing",
			Message:     "charged",
			Severity:    wire.SeverityInfo,
		},
	}
	entry, err := FromLogLine(ll)
	assert.NilError(t, err)
	assert.Equal(t, entry.LogSystem, "file_in")
	assert.Equal(t, entry.ServiceName, "billing")
}

func TestFromLogLineRejectsMissingVariant(t *testing.T) {
	_, err := FromLogLine(&wire.LogLine{})
	assert.ErrorIs(t, err, ErrMissingLine)
}

func TestFromLogLineRejectsInvalidExtraJSON(t *testing.T) {
	_, err := FromLogLine(&wire.LogLine{Line: &wire.GelfLine{ShortMessage: "x", Extra: "not json"}})
	assert.ErrorContains(t, err, "extra")
}

func TestNDJSONJoinsWithNewlines(t *testing.T) {
	entries := []*IndexLogEntry{
		{Message: "a", FreeFields: map[string]any{}},
		{Message: "b", FreeFields: map[string]any{}},
	}
	out, err := NDJSON(entries)
	assert.NilError(t, err)
	lines := 0
	for _, b := range out {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, lines, 1)
}
