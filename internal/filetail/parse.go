// Package filetail implements the file tailer ingress:
// tail -F semantics via fsnotify, regex+capture-group field mapping with
// typed coercion, into the generic wire LogLine variant.
package filetail

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"rlog/internal/shipperconfig"
	"rlog/internal/wire"
)

// ErrNoMatch is returned when a line does not match the configured
// pattern.
var ErrNoMatch = errors.New("filetail: line does not match pattern")

// ErrMissingMessage is returned when a line matches but no capture group
// is mapped to "message" (message is required).
var ErrMissingMessage = errors.New("filetail: no message field defined")

var hostname = mustHostname()

func mustHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// ParseLine applies cfg's pattern and field mapping to line, producing a
// generic wire LogLine. file is the tailed path, used as the default
// service_name when the mapping doesn't supply one.
func ParseLine(cfg *shipperconfig.FileParseConfig, line, file string) (*wire.LogLine, error) {
	captures := cfg.Regexp.FindStringSubmatch(line)
	if captures == nil {
		return nil, errors.Wrapf(ErrNoMatch, "line %q", truncate(line))
	}

	var (
		host        *string
		ts          *time.Time
		serviceName *string
		severity    *wire.SyslogSeverity
		message     *string
	)
	extra := map[string]any{}
	for k, v := range cfg.StaticFields {
		extra[k] = v
	}

	for i, field := range cfg.Mapping {
		if i+1 >= len(captures) {
			return nil, errors.Errorf("missing capture group for field %s", field.Name)
		}
		value := strings.TrimSpace(captures[i+1])

		switch field.Name {
		case "timestamp":
			parsed, err := ParseTimestamp(value)
			if err != nil {
				return nil, errors.Wrapf(err, "incorrect value for field %s: %s", field.Name, value)
			}
			ts = &parsed
			continue
		case "host":
			host = &value
			continue
		case "message":
			message = &value
			continue
		case "service_name":
			serviceName = &value
			continue
		case "severity":
			sev := wire.SeverityFromName(value)
			severity = &sev
			continue
		}

		coerced, err := coerce(field.Type, field.Name, value)
		if err != nil {
			return nil, err
		}
		extra[field.Name] = coerced
	}

	if message == nil {
		return nil, ErrMissingMessage
	}

	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, errors.Wrap(err, "encode extra fields")
	}

	resolvedHost := hostname
	if host != nil {
		resolvedHost = *host
	}
	resolvedTS := time.Now().UTC()
	if ts != nil {
		resolvedTS = *ts
	}
	resolvedSeverity := wire.SeverityInfo
	if severity != nil {
		resolvedSeverity = *severity
	}
	resolvedService := file
	if serviceName != nil {
		resolvedService = *serviceName
	}

	return &wire.LogLine{
		Host:      resolvedHost,
		Timestamp: wire.Timestamp{Seconds: resolvedTS.Unix(), Nanos: int32(resolvedTS.Nanosecond())},
		Line: &wire.GenericLine{
			ServiceName: resolvedService,
			LogSystem:   "file_in",
			Severity:    resolvedSeverity,
			Message:     *message,
			Extra:       string(extraJSON),
		},
	}, nil
}

func coerce(t shipperconfig.FieldType, name, value string) (any, error) {
	switch t {
	case shipperconfig.FieldTypeTimestamp:
		ts, err := ParseTimestamp(value)
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect value for field %s: %s", name, value)
		}
		return ts.Format(time.RFC3339Nano), nil
	case shipperconfig.FieldTypeNumber:
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n, nil
		}
		return nil, errors.Errorf("incorrect value for field %s: %s", name, value)
	case shipperconfig.FieldTypeSyslogLevelText:
		return int32(wire.SeverityFromName(value)), nil
	default:
		return value, nil
	}
}

// ParseTimestamp tries, in order, RFC 3339 (with and without fractional
// seconds), ISO 8601 with a numeric timezone offset, and RFC 2822 style
// layouts (RFC 1123Z, RFC 822Z), returning the first successful parse.
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		time.RFC1123Z,
		time.RFC822Z,
	}
	var lastErr error
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, errors.Wrap(lastErr, "unable to parse timestamp")
}

func truncate(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
