// Package gelfingress implements the GELF TCP ingress:
// one NUL-byte-framed JSON record per message, arbitrarily many concurrent
// connections, drop-newest on a full queue.
package gelfingress

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"rlog/internal/queue"
	"rlog/internal/wire"
)

// ErrMissingRequiredField is returned when a decoded GELF frame lacks a
// field the wire LogLine requires: host, timestamp, short_message.
var ErrMissingRequiredField = errors.New("gelfingress: missing required field")

// reservedExtraKeys mirrors the set gelf.Message.UnmarshalJSON already
// excludes from Extra (the GELF spec's reserved top-level field names),
// documented here because our LogLine.Extra re-serialization relies on it.
var reservedExtraKeys = map[string]struct{}{
	"host": {}, "timestamp": {}, "facility": {}, "version": {},
	"level": {}, "short_message": {}, "full_message": {},
}

// Ingress listens for GELF TCP connections and pushes decoded records onto
// out, dropping the newest record when out is full.
type Ingress struct {
	addr string
	out  *queue.Queue[*wire.LogLine]
	log  *logrus.Entry

	errorCount  int64
	droppedCount int64
}

// New builds a GELF TCP ingress bound to addr (--gelf-tcp-bind-address).
func New(addr string, out *queue.Queue[*wire.LogLine], log *logrus.Entry) *Ingress {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ingress{addr: addr, out: out, log: log.WithField("component", "gelf_in")}
}

// Run accepts connections until ctx is canceled, spawning one handler
// goroutine per connection.
func (in *Ingress) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", in.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", in.addr)
	}
	in.log.WithField("addr", in.addr).Info("gelf tcp ingress listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				in.log.WithError(err).Error("accept failed")
				continue
			}
		}
		go in.handleConn(ctx, conn)
	}
}

// handleConn reads NUL-delimited frames from conn until it closes or ctx
// is canceled. Shutdown only stops accepting new frames - any frame
// already buffered when the connection drops is discarded, not preserved.
func (in *Ingress) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	log := in.log.WithField("peer", peer)
	log.Debug("gelf connection accepted")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		frame, err := reader.ReadBytes(0x00)
		if err != nil {
			if len(frame) > 0 {
				log.WithError(err).Debug("connection closed mid-frame, discarding partial frame")
			}
			return
		}
		frame = frame[:len(frame)-1] // strip the trailing NUL

		ll, err := decode(frame)
		if err != nil {
			in.errorCount++
			log.WithError(err).WithField("frame", truncate(frame)).Error("unable to decode gelf frame")
			continue
		}

		if in.out.TrySend(ll) == queue.Full {
			in.droppedCount++
			log.Warn("gelf queue full, dropping record")
		}
	}
}

func decode(frame []byte) (*wire.LogLine, error) {
	var msg gelf.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, errors.Wrap(err, "decode gelf json")
	}

	if msg.Host == "" {
		return nil, errors.Wrapf(ErrMissingRequiredField, "host")
	}
	if msg.Short == "" {
		return nil, errors.Wrapf(ErrMissingRequiredField, "short_message")
	}
	if msg.TimeUnix == 0 {
		return nil, errors.Wrapf(ErrMissingRequiredField, "timestamp")
	}

	// gelf.Message.Level is a plain int32, so its unmarshaled zero value is
	// indistinguishable from an explicit `"level": 0` (Emergency). Decode
	// the frame a second time into raw fields to tell "absent" from
	// "present and zero" apart before defaulting to Alert.
	severity := msg.Level
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, errors.Wrap(err, "decode gelf json")
	}
	if _, present := raw["level"]; !present {
		severity = int32(wire.SeverityAlert)
	}

	extra := map[string]any{}
	for k, v := range msg.Extra {
		k = trimUnderscore(k)
		if _, reserved := reservedExtraKeys[k]; reserved {
			continue
		}
		extra[k] = v
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, errors.Wrap(err, "re-encode extra fields")
	}

	var fullMessage *string
	if msg.Full != "" {
		fullMessage = &msg.Full
	}

	sec := int64(msg.TimeUnix)
	nanos := int32((msg.TimeUnix - float64(sec)) * 1e9)

	return &wire.LogLine{
		Host:      msg.Host,
		Timestamp: wire.Timestamp{Seconds: sec, Nanos: nanos},
		Line: &wire.GelfLine{
			ShortMessage: msg.Short,
			FullMessage:  fullMessage,
			Severity:     severity,
			Extra:        string(extraJSON),
		},
	}, nil
}

func trimUnderscore(k string) string {
	if len(k) > 0 && k[0] == '_' {
		return k[1:]
	}
	return k
}

func truncate(b []byte) string {
	const max = 256
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}

// ErrorCount and DroppedCount report this ingress's own counts of frames
// that failed to decode and records dropped on a full queue. They are not
// fed into the shipper's Metrics report.
func (in *Ingress) ErrorCount() int64   { return in.errorCount }
func (in *Ingress) DroppedCount() int64 { return in.droppedCount }
