package syslogingress

import (
	"strconv"
	"strings"
	"time"

	"rlog/internal/wire"
)

// Message is a loosely parsed syslog datagram: every field is optional
// because RFC 3164 datagrams in the wild omit most of them.
type Message struct {
	Facility  *wire.SyslogFacility
	Severity  *wire.SyslogSeverity
	Hostname  *string
	AppName   *string
	ProcID    *ProcID
	MsgID     *string
	Timestamp *time.Time
	Msg       string
}

// ProcID is the syslog PROCID field, which may be numeric or an arbitrary
// token.
type ProcID struct {
	PID  *uint32
	Name *string
}

var rfc5424Facilities = [...]wire.SyslogFacility{
	wire.FacilityKernel, wire.FacilityUser, wire.FacilityMail, wire.FacilityDaemon,
	wire.FacilityAuth, wire.FacilitySyslog, wire.FacilityLpr, wire.FacilityNews,
	wire.FacilityUucp, wire.FacilityCron, wire.FacilityAuthpriv, wire.FacilityFtp,
	wire.FacilityNtp, wire.FacilityAudit, wire.FacilityAlert, wire.FacilityClockd,
	wire.FacilityLocal0, wire.FacilityLocal1, wire.FacilityLocal2, wire.FacilityLocal3,
	wire.FacilityLocal4, wire.FacilityLocal5, wire.FacilityLocal6, wire.FacilityLocal7,
}

// ParseMessage loosely parses one syslog datagram, trying RFC 5424 first
// (<PRI>1 TIMESTAMP HOST APP PROCID MSGID [SD] MSG) and falling back to
// RFC 3164 (<PRI>TIMESTAMP HOST TAG[PID]: MSG), as permissively as
// syslog_loose does - missing or malformed trailing fields degrade to nil
// rather than a parse failure, since any raw byte stream is accepted input
// by design.
func ParseMessage(raw string) Message {
	raw = strings.TrimRight(raw, "\r\n")
	pri, rest, ok := consumePRI(raw)

	var m Message
	if ok {
		facility := wire.SyslogFacility(pri / 8)
		severity := wire.SyslogSeverity(pri % 8)
		if int(facility) < len(rfc5424Facilities) {
			f := rfc5424Facilities[facility]
			m.Facility = &f
		}
		if severity <= wire.SeverityDebug {
			m.Severity = &severity
		}
	} else {
		rest = raw
	}

	if strings.HasPrefix(rest, "1 ") {
		parseRFC5424Body(rest[2:], &m)
		return m
	}
	parseRFC3164Body(rest, &m)
	return m
}

func consumePRI(s string) (pri int, rest string, ok bool) {
	if len(s) == 0 || s[0] != '<' {
		return 0, s, false
	}
	end := strings.IndexByte(s, '>')
	if end < 1 {
		return 0, s, false
	}
	v, err := strconv.Atoi(s[1:end])
	if err != nil || v < 0 || v > 191 {
		return 0, s, false
	}
	return v, s[end+1:], true
}

func parseRFC5424Body(s string, m *Message) {
	fields := splitN(s, ' ', 6)
	if len(fields) > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, fields[0]); err == nil {
			m.Timestamp = &ts
		}
	}
	if len(fields) > 1 && fields[1] != "-" {
		h := fields[1]
		m.Hostname = &h
	}
	if len(fields) > 2 && fields[2] != "-" {
		a := fields[2]
		m.AppName = &a
	}
	if len(fields) > 3 && fields[3] != "-" {
		m.ProcID = parseProcID(fields[3])
	}
	if len(fields) > 4 && fields[4] != "-" {
		id := fields[4]
		m.MsgID = &id
	}
	if len(fields) > 5 {
		m.Msg = stripStructuredData(fields[5])
	}
}

// rfc3164TimestampLen is "Mmm dd hh:mm:ss".
const rfc3164TimestampLen = 15

func parseRFC3164Body(s string, m *Message) {
	if len(s) >= rfc3164TimestampLen {
		if ts, err := time.Parse(time.Stamp, s[:rfc3164TimestampLen]); err == nil {
			now := time.Now()
			ts = ts.AddDate(now.Year(), 0, 0)
			m.Timestamp = &ts
			s = strings.TrimPrefix(s[rfc3164TimestampLen:], " ")
		}
	}

	if sp := strings.IndexByte(s, ' '); sp >= 0 {
		h := s[:sp]
		m.Hostname = &h
		s = s[sp+1:]
	}

	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		tag := s[:colon]
		s = strings.TrimPrefix(s[colon+1:], " ")
		if lb := strings.IndexByte(tag, '['); lb >= 0 && strings.HasSuffix(tag, "]") {
			app := tag[:lb]
			m.AppName = &app
			m.ProcID = parseProcID(tag[lb+1 : len(tag)-1])
		} else if tag != "" {
			m.AppName = &tag
		}
	}

	m.Msg = s
}

func parseProcID(s string) *ProcID {
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		pid := uint32(v)
		return &ProcID{PID: &pid}
	}
	name := s
	return &ProcID{Name: &name}
}

// stripStructuredData drops a leading RFC 5424 "[...]" structured-data
// block, which this loose parser does not otherwise interpret.
func stripStructuredData(s string) string {
	if !strings.HasPrefix(s, "[") {
		return s
	}
	if end := strings.IndexByte(s, ']'); end >= 0 {
		return strings.TrimPrefix(s[end+1:], " ")
	}
	return s
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	for len(out) < n-1 {
		idx := strings.IndexByte(s, sep)
		if idx < 0 {
			break
		}
		out = append(out, s[:idx])
		s = s[idx+1:]
	}
	out = append(out, s)
	return out
}
