package syslogingress

import (
	"github.com/pkg/errors"

	"rlog/internal/wire"
)

// ErrMissingField is returned when a required syslog field is absent,
// mirroring the original's TryFrom<SyslogLog> for LogLine rejecting a
// message with no hostname/timestamp/severity.
var ErrMissingField = errors.New("syslogingress: missing required field")

// toLogLine converts a loosely parsed syslog message into the wire
// LogLine shipped to a collector; Run calls it for every datagram that
// no exclusion filter drops.
func toLogLine(m Message) (*wire.LogLine, error) {
	if m.Hostname == nil {
		return nil, errors.Wrapf(ErrMissingField, "hostname")
	}
	if m.Timestamp == nil {
		return nil, errors.Wrapf(ErrMissingField, "timestamp")
	}
	if m.Severity == nil {
		return nil, errors.Wrapf(ErrMissingField, "severity")
	}

	facility := wire.FacilityLocal0
	if m.Facility != nil {
		facility = *m.Facility
	}

	line := &wire.SyslogLine{
		Facility: facility,
		Severity: *m.Severity,
		AppName:  m.AppName,
		MsgID:    m.MsgID,
		Msg:      m.Msg,
	}
	if m.ProcID != nil {
		line.ProcPID = m.ProcID.PID
		line.ProcName = m.ProcID.Name
	}

	return &wire.LogLine{
		Host: *m.Hostname,
		Timestamp: wire.Timestamp{
			Seconds: m.Timestamp.Unix(),
			Nanos:   int32(m.Timestamp.Nanosecond()),
		},
		Line: line,
	}, nil
}
