// Package syslogingress implements the syslog UDP ingress:
// one socket, loose RFC 3164/5424 parsing, per-message exclusion filters,
// drop-newest on a full queue.
//
// No third-party syslog parsing library covers server-side loose datagram
// parsing (github.com/RackSec/srslog is an output-only client, dropped) so
// parse.go is hand-written here, in the spirit of a loose RFC 3164/5424
// datagram scanner rather than a strict parser.
package syslogingress

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"rlog/internal/queue"
	"rlog/internal/shipperconfig"
	"rlog/internal/wire"
)

// MaxDatagramSize is the largest UDP payload this ingress will read in one
// recv.
const MaxDatagramSize = 65507

// Ingress listens on a single UDP socket and pushes decoded records onto
// out, dropping the newest record when out is full.
type Ingress struct {
	addr    string
	out     *queue.Queue[*wire.LogLine]
	filters func() []shipperconfig.SyslogExclusionFilter
	log     *logrus.Entry

	errorCount   int64
	droppedCount int64
	excludedCount int64
}

// New builds a syslog UDP ingress. filters is called once per datagram so
// the current hot-reloaded exclusion filter list is always used.
func New(addr string, out *queue.Queue[*wire.LogLine], filters func() []shipperconfig.SyslogExclusionFilter, log *logrus.Entry) *Ingress {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ingress{addr: addr, out: out, filters: filters, log: log.WithField("component", "syslog_in")}
}

// Run binds the UDP socket and reads datagrams until ctx is canceled.
func (in *Ingress) Run(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", in.addr)
	if err != nil {
		return err
	}
	in.log.WithField("addr", in.addr).Info("syslog udp ingress listening")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				in.log.WithError(err).Error("unable to read udp socket")
				continue
			}
		}

		datagram := string(buf[:n])
		msg := ParseMessage(datagram)

		if isExcluded(msg, in.filters()) {
			in.excludedCount++
			continue
		}

		ll, err := toLogLine(msg)
		if err != nil {
			in.errorCount++
			in.log.WithError(err).WithField("remote_addr", from.String()).Error("unable to convert syslog message")
			continue
		}

		if in.out.TrySend(ll) == queue.Full {
			in.droppedCount++
			in.log.Warn("syslog queue full, dropping record")
		}
	}
}

// isExcluded reports whether msg matches the configured exclusion filters.
//
// Only the FIRST filter in the configured list is ever evaluated - this
// mirrors an observed bug in the original that is preserved here rather
// than fixed, since changing it would be a behavior change outside this
// port's scope. Within that one filter, a configured pattern is
// "applicable" only when msg carries the corresponding field too; a
// pattern configured against a field msg doesn't have (e.g. appname on a
// RFC 3164 line) is skipped rather than forced to non-match. The record
// is excluded when every applicable pattern matches and at least one
// pattern was applicable.
func isExcluded(msg Message, filters []shipperconfig.SyslogExclusionFilter) bool {
	if len(filters) == 0 {
		return false
	}
	f := filters[0]

	applicable := false
	if f.AppName != nil && msg.AppName != nil {
		applicable = true
		if !f.AppName.MatchString(*msg.AppName) {
			return false
		}
	}
	if f.Facility != nil && msg.Facility != nil {
		applicable = true
		if !f.Facility.MatchString(msg.Facility.Name()) {
			return false
		}
	}
	if f.Message != nil {
		applicable = true
		if !f.Message.MatchString(msg.Msg) {
			return false
		}
	}
	return applicable
}

func (in *Ingress) ErrorCount() int64    { return in.errorCount }
func (in *Ingress) DroppedCount() int64  { return in.droppedCount }
func (in *Ingress) ExcludedCount() int64 { return in.excludedCount }
