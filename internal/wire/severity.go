package wire

// OTelSeverity is a name/number pair from the OpenTelemetry logs severity
// scale (1-24, grouped into TRACE/DEBUG/INFO/WARN/ERROR/FATAL bands of 4).
type OTelSeverity struct {
	Text   string
	Number int32
}

// otelBySyslog maps each syslog severity to its OTel severity name.
// Numbers follow the standard OTel band layout; where a specific band
// member (FATAL4, FATAL3, INFO3) applies, the offset within the band is
// preserved rather than defaulting to the band floor.
var otelBySyslog = [...]OTelSeverity{
	SeverityEmergency: {"FATAL4", 24},
	SeverityAlert:     {"FATAL3", 23},
	SeverityCritical:  {"FATAL", 21},
	SeverityError:     {"ERROR", 17},
	SeverityWarning:   {"WARN", 13},
	SeverityNotice:    {"INFO3", 11},
	SeverityInfo:      {"INFO", 9},
	SeverityDebug:     {"DEBUG", 5},
}

// OTel returns the severity_text/severity_number pair an index entry emits
// for this syslog severity.
func (s SyslogSeverity) OTel() OTelSeverity {
	if s < 0 || int(s) >= len(otelBySyslog) {
		return otelBySyslog[SeverityDebug]
	}
	return otelBySyslog[s]
}
