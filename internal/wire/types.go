// Package wire implements the LogLine/Metrics messages exchanged between a
// shipper and a collector, and their hand-rolled protobuf-wire marshaling
// (see marshal.go; schema documented in rlog.proto).
package wire

// Timestamp is seconds+nanoseconds since the Unix epoch, mirroring
// google.protobuf.Timestamp without depending on the well-known-types
// package.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// SyslogFacility enumerates the syslog facilities named in 
type SyslogFacility int32

const (
	FacilityKernel SyslogFacility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityLpr
	FacilityNews
	FacilityUucp
	FacilityCron
	FacilityAuthpriv
	FacilityFtp
	FacilityNtp
	FacilityAudit
	FacilityAlert
	FacilityClockd
	FacilityLocal0
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

var facilityNames = [...]string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "audit", "alert", "clockd",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

// Name returns the lowercase textual form emitted to the indexing backend.
func (f SyslogFacility) Name() string {
	if f < 0 || int(f) >= len(facilityNames) {
		return "local0"
	}
	return facilityNames[f]
}

// SyslogSeverity enumerates the RFC 5424 severities.
type SyslogSeverity int32

const (
	SeverityEmergency SyslogSeverity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

// SeverityFromInt clamps an arbitrary integer severity to the 0..7 syslog
// range, defaulting out-of-range values to Debug (the GELF variant's
// severity handling).
func SeverityFromInt(v int32) SyslogSeverity {
	if v < 0 || v > int32(SeverityDebug) {
		return SeverityDebug
	}
	return SyslogSeverity(v)
}

var severityNames = [...]string{
	"Emergency", "Alert", "Critical", "Error", "Warning", "Notice", "Info", "Debug",
}

func (s SyslogSeverity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "Debug"
	}
	return severityNames[s]
}

// SeverityFromName parses a severity by its Go name (as produced by
// String), used by the file tailer's SyslogLevelText field type. Unknown
// names default to Info, matching rlog-shipper's log_file.rs.
func SeverityFromName(name string) SyslogSeverity {
	for i, n := range severityNames {
		if n == name {
			return SyslogSeverity(i)
		}
	}
	return SeverityInfo
}

// Line is the closed set of wire variants a LogLine may carry.
// It is a sealed interface: only the three types below implement it, and
// callers exhaustively type-switch on it instead of adding new dynamic
// implementations.
type Line interface {
	isLine()
}

// SyslogLine is the syslog wire variant.
type SyslogLine struct {
	Facility SyslogFacility
	Severity SyslogSeverity
	AppName  *string
	ProcPID  *uint32
	ProcName *string
	MsgID    *string
	Msg      string
}

func (*SyslogLine) isLine() {}

// GelfLine is the GELF wire variant.
type GelfLine struct {
	ShortMessage string
	FullMessage  *string
	// Severity is the raw integer the GELF frame carried (or 1/Alert if
	// absent, per ); range-clamping to Debug happens at
	// index-entry conversion time.
	Severity int32
	// Extra is a JSON-object-serialized string.
	Extra string
}

func (*GelfLine) isLine() {}

// GenericLine is the catch-all variant used by the file tailer.
type GenericLine struct {
	ServiceName string
	LogSystem   string
	Severity    SyslogSeverity
	Message     string
	// Extra is a JSON-object-serialized string.
	Extra string
}

func (*GenericLine) isLine() {}

// LogLine is the wire record shipped from a shipper to a collector.
type LogLine struct {
	Host      string
	Timestamp Timestamp
	Line      Line
}

// Metrics is the periodic snapshot a shipper reports to a collector.
type Metrics struct {
	Hostname       string
	QueueCount     map[string]uint64
	ProcessedCount map[string]uint64
	ErrorCount     map[string]uint64
}

// Empty is the response type for both LogCollector RPCs, matching the
// conventional google.protobuf.Empty shape without the dependency.
type Empty struct{}

// Marshal encodes an Empty message (always zero bytes).
func (*Empty) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal decodes an Empty message (a no-op; any bytes are ignored,
// matching protobuf's forward-compatible unknown-field tolerance).
func (*Empty) Unmarshal([]byte) error { return nil }
