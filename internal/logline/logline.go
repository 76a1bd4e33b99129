// Package logline converts a wire LogLine into the flat document shape a
// collector indexes, grounded on rlog-collector/src/index.rs's
// TryFrom<LogLine> for IndexLogEntry.
package logline

import (
	"encoding/json"

	"github.com/pkg/errors"

	"rlog/internal/wire"
)

// ErrMissingLine is returned when a LogLine carries no recognized variant.
var ErrMissingLine = errors.New("logline: `line` field is mandatory")

// IndexLogEntry is the flat document sent to the indexing backend.
// FreeFields is serialized flattened alongside the fixed fields ("free
// fields" merged at the top level), the Go equivalent of the original's
// #[serde(flatten)].
type IndexLogEntry struct {
	Message        string
	TimestampMS    uint64
	Hostname       string
	ServiceName    string
	SeverityText   string
	SeverityNumber int32
	LogSystem      string
	FreeFields     map[string]any
}

// MarshalJSON flattens FreeFields alongside the struct's fixed fields, so
// the NDJSON body the indexer sends has one flat JSON object per line.
func (e *IndexLogEntry) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range e.FreeFields {
		out[k] = v
	}
	out["message"] = e.Message
	out["timestamp"] = e.TimestampMS
	out["hostname"] = e.Hostname
	out["service_name"] = e.ServiceName
	out["severity_text"] = e.SeverityText
	out["severity_number"] = e.SeverityNumber
	out["log_system"] = e.LogSystem
	return json.Marshal(out)
}

// FromLogLine converts a wire LogLine to an IndexLogEntry.
func FromLogLine(ll *wire.LogLine) (*IndexLogEntry, error) {
	if ll.Line == nil {
		return nil, ErrMissingLine
	}
	timestampMS := uint64(ll.Timestamp.Seconds*1000 + int64(ll.Timestamp.Nanos)/1_000_000)

	switch line := ll.Line.(type) {
	case *wire.GelfLine:
		return gelfToEntry(ll.Host, timestampMS, line)
	case *wire.SyslogLine:
		return syslogToEntry(ll.Host, timestampMS, line), nil
	case *wire.GenericLine:
		return genericToEntry(ll.Host, timestampMS, line)
	default:
		return nil, ErrMissingLine
	}
}

func gelfToEntry(hostname string, timestampMS uint64, g *wire.GelfLine) (*IndexLogEntry, error) {
	severity := wire.SeverityFromInt(g.Severity)
	otel := severity.OTel()

	message := g.ShortMessage
	if g.FullMessage != nil && *g.FullMessage != "" {
		message = *g.FullMessage
	}

	var extra map[string]any
	if g.Extra != "" {
		if err := json.Unmarshal([]byte(g.Extra), &extra); err != nil {
			return nil, errors.Wrap(err, "`extra` field is not a valid json object")
		}
	}
	if extra == nil {
		extra = map[string]any{}
	}

	serviceName := "unknown"
	if s, ok := extra["service"].(string); ok && s != "" {
		serviceName = s
	}
	delete(extra, "service")

	return &IndexLogEntry{
		Message:        message,
		TimestampMS:    timestampMS,
		Hostname:       hostname,
		ServiceName:    serviceName,
		SeverityText:   otel.Text,
		SeverityNumber: otel.Number,
		LogSystem:      "gelf",
		FreeFields:     extra,
	}, nil
}

func syslogToEntry(hostname string, timestampMS uint64, s *wire.SyslogLine) *IndexLogEntry {
	otel := s.Severity.OTel()

	free := map[string]any{
		"facility": s.Facility.Name(),
	}
	if s.ProcPID != nil {
		free["proc_pid"] = *s.ProcPID
	}
	if s.ProcName != nil {
		free["proc_name"] = *s.ProcName
	}
	if s.MsgID != nil {
		free["msgid"] = *s.MsgID
	}

	serviceName := "_syslog"
	if s.AppName != nil && *s.AppName != "" {
		serviceName = *s.AppName
	}

	return &IndexLogEntry{
		Message:        s.Msg,
		TimestampMS:    timestampMS,
		Hostname:       hostname,
		ServiceName:    serviceName,
		SeverityText:   otel.Text,
		SeverityNumber: otel.Number,
		LogSystem:      "syslog",
		FreeFields:     free,
	}
}

// genericToEntry handles the file tailer's variant: service_name travels
// with the record as is; log_system does too, defaulting to "file_in" when
// empty; severity goes through the OTel mapping.
func genericToEntry(hostname string, timestampMS uint64, g *wire.GenericLine) (*IndexLogEntry, error) {
	otel := g.Severity.OTel()

	var extra map[string]any
	if g.Extra != "" {
		if err := json.Unmarshal([]byte(g.Extra), &extra); err != nil {
			return nil, errors.Wrap(err, "`extra` field is not a valid json object")
		}
	}
	if extra == nil {
		extra = map[string]any{}
	}

	logSystem := g.LogSystem
	if logSystem == "" {
		logSystem = "file_in"
	}

	return &IndexLogEntry{
		Message:        g.Message,
		TimestampMS:    timestampMS,
		Hostname:       hostname,
		ServiceName:    g.ServiceName,
		SeverityText:   otel.Text,
		SeverityNumber: otel.Number,
		LogSystem:      logSystem,
		FreeFields:     extra,
	}, nil
}

// NDJSON marshals entries as newline-delimited JSON.
func NDJSON(entries []*IndexLogEntry) ([]byte, error) {
	var out []byte
	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal entry %d", i)
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, data...)
	}
	return out, nil
}
