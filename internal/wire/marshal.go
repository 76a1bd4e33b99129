package wire

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal/Unmarshal below hand-encode the schema documented in rlog.proto
// using protowire directly, rather than generating descriptor-backed types
// with protoc. Field numbers match rlog.proto exactly, so bytes produced
// here are readable by any conforming protobuf decoder and vice versa.

var (
	ErrUnknownWireType = errors.New("wire: unknown field wire type")
	ErrTruncated        = errors.New("wire: truncated message")
	ErrNoLineVariant     = errors.New("wire: LogLine has no line variant set")
)

func marshalTimestamp(b []byte, num protowire.Number, ts Timestamp) []byte {
	var inner []byte
	if ts.Seconds != 0 {
		inner = protowire.AppendTag(inner, 1, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(ts.Seconds))
	}
	if ts.Nanos != 0 {
		inner = protowire.AppendTag(inner, 2, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(uint32(ts.Nanos)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func unmarshalTimestamp(data []byte) (Timestamp, error) {
	var ts Timestamp
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ts, ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ts, ErrTruncated
			}
			ts.Seconds = int64(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ts, ErrTruncated
			}
			ts.Nanos = int32(uint32(v))
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return ts, ErrTruncated
			}
			data = data[n:]
		}
	}
	return ts, nil
}

func skipField(data []byte, typ protowire.Type) int {
	switch typ {
	case protowire.VarintType:
		_, n := protowire.ConsumeVarint(data)
		return n
	case protowire.Fixed32Type:
		_, n := protowire.ConsumeFixed32(data)
		return n
	case protowire.Fixed64Type:
		_, n := protowire.ConsumeFixed64(data)
		return n
	case protowire.BytesType:
		_, n := protowire.ConsumeBytes(data)
		return n
	default:
		return -1
	}
}

func appendOptString(b []byte, num protowire.Number, s *string) []byte {
	if s == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendString(b, *s)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendString(b, s)
	return b
}

// Marshal encodes a SyslogLine (field 3 body of LogLine.line).
func (l *SyslogLine) Marshal() []byte {
	var b []byte
	if l.Facility != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(l.Facility))
	}
	if l.Severity != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(l.Severity))
	}
	b = appendOptString(b, 3, l.AppName)
	if l.ProcPID != nil {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*l.ProcPID))
	}
	b = appendOptString(b, 5, l.ProcName)
	b = appendOptString(b, 6, l.MsgID)
	b = appendString(b, 7, l.Msg)
	return b
}

func unmarshalSyslogLine(data []byte) (*SyslogLine, error) {
	l := &SyslogLine{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Facility = SyslogFacility(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Severity = SyslogSeverity(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			s := v
			l.AppName = &s
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			pid := uint32(v)
			l.ProcPID = &pid
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			s := v
			l.ProcName = &s
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			s := v
			l.MsgID = &s
			data = data[n:]
		case 7:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Msg = v
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return nil, ErrTruncated
			}
			data = data[n:]
		}
	}
	return l, nil
}

// Marshal encodes a GelfLine.
func (l *GelfLine) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, l.ShortMessage)
	b = appendOptString(b, 2, l.FullMessage)
	if l.Severity != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(l.Severity)))
	}
	b = appendString(b, 4, l.Extra)
	return b
}

func unmarshalGelfLine(data []byte) (*GelfLine, error) {
	l := &GelfLine{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.ShortMessage = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			s := v
			l.FullMessage = &s
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Severity = int32(uint32(v))
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Extra = v
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return nil, ErrTruncated
			}
			data = data[n:]
		}
	}
	return l, nil
}

// Marshal encodes a GenericLine.
func (l *GenericLine) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, l.ServiceName)
	b = appendString(b, 2, l.LogSystem)
	if l.Severity != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(l.Severity))
	}
	b = appendString(b, 4, l.Message)
	b = appendString(b, 5, l.Extra)
	return b
}

func unmarshalGenericLine(data []byte) (*GenericLine, error) {
	l := &GenericLine{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.ServiceName = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.LogSystem = v
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Severity = SyslogSeverity(v)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Message = v
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrTruncated
			}
			l.Extra = v
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return nil, ErrTruncated
			}
			data = data[n:]
		}
	}
	return l, nil
}

// Marshal encodes a LogLine, including its oneof line variant.
func (ll *LogLine) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, ll.Host)
	b = marshalTimestamp(b, 2, ll.Timestamp)

	switch v := ll.Line.(type) {
	case *SyslogLine:
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Marshal())
	case *GelfLine:
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Marshal())
	case *GenericLine:
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Marshal())
	default:
		return nil, ErrNoLineVariant
	}
	return b, nil
}

// Unmarshal decodes a LogLine.
func (ll *LogLine) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return ErrTruncated
			}
			ll.Host = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrTruncated
			}
			ts, err := unmarshalTimestamp(v)
			if err != nil {
				return err
			}
			ll.Timestamp = ts
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrTruncated
			}
			line, err := unmarshalSyslogLine(v)
			if err != nil {
				return errors.Wrap(err, "syslog line")
			}
			ll.Line = line
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrTruncated
			}
			line, err := unmarshalGelfLine(v)
			if err != nil {
				return errors.Wrap(err, "gelf line")
			}
			ll.Line = line
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrTruncated
			}
			line, err := unmarshalGenericLine(v)
			if err != nil {
				return errors.Wrap(err, "generic line")
			}
			ll.Line = line
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return ErrTruncated
			}
			data = data[n:]
		}
	}
	if ll.Line == nil {
		return ErrNoLineVariant
	}
	return nil
}

// Marshal encodes a Metrics message, including its three string->uint64 maps.
func (m *Metrics) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Hostname)
	b = appendUint64Map(b, 2, m.QueueCount)
	b = appendUint64Map(b, 3, m.ProcessedCount)
	b = appendUint64Map(b, 4, m.ErrorCount)
	return b, nil
}

// appendUint64Map encodes a map<string,uint64> field as a repeated
// key/value entry message, per the standard protobuf map wire
// representation.
func appendUint64Map(b []byte, num protowire.Number, m map[string]uint64) []byte {
	for k, v := range m {
		var entry []byte
		entry = appendString(entry, 1, k)
		if v != 0 {
			entry = protowire.AppendTag(entry, 2, protowire.VarintType)
			entry = protowire.AppendVarint(entry, v)
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func consumeUint64MapEntry(data []byte) (key string, val uint64, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", 0, ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", 0, ErrTruncated
			}
			key = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return "", 0, ErrTruncated
			}
			val = v
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return "", 0, ErrTruncated
			}
			data = data[n:]
		}
	}
	return key, val, nil
}

// Unmarshal decodes a Metrics message.
func (m *Metrics) Unmarshal(data []byte) error {
	m.QueueCount = map[string]uint64{}
	m.ProcessedCount = map[string]uint64{}
	m.ErrorCount = map[string]uint64{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrTruncated
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return ErrTruncated
			}
			m.Hostname = v
			data = data[n:]
		case 2, 3, 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrTruncated
			}
			key, val, err := consumeUint64MapEntry(v)
			if err != nil {
				return err
			}
			switch num {
			case 2:
				m.QueueCount[key] = val
			case 3:
				m.ProcessedCount[key] = val
			case 4:
				m.ErrorCount[key] = val
			}
			data = data[n:]
		default:
			n := skipField(data, typ)
			if n < 0 {
				return ErrTruncated
			}
			data = data[n:]
		}
	}
	return nil
}
