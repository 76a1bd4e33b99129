package rpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gotest.tools/v3/assert"

	"rlog/internal/logline"
	"rlog/internal/metrics"
	"rlog/internal/queue"
	"rlog/internal/shippers"
	"rlog/internal/wire"
)

func newTestServer(cap int) (*Server, *queue.Queue[*logline.IndexLogEntry]) {
	out := queue.New[*logline.IndexLogEntry](cap)
	reg := shippers.NewRegistry()
	collector := metrics.NewCollector(prometheus.NewRegistry())
	s := New(out, reg, collector, nil)
	s.now = func() time.Time { return time.Unix(1000, 0) }
	return s, out
}

func validSyslogLine() *wire.LogLine {
	return &wire.LogLine{
		Host:      "web-01",
		Timestamp: wire.Timestamp{Seconds: 1000},
		Line: &wire.SyslogLine{
			Severity: wire.SeverityInfo,
			Facility: wire.FacilityLocal0,
			Msg:      "hello",
		},
	}
}

func TestLogEnqueuesConvertedEntry(t *testing.T) {
	s, out := newTestServer(1)
	_, err := s.Log(context.Background(), validSyslogLine())
	assert.NilError(t, err)

	entry, ok := out.Recv()
	assert.Check(t, ok)
	assert.Equal(t, entry.Message, "hello")
}

func TestLogRejectsUnconvertibleLine(t *testing.T) {
	s, _ := newTestServer(1)
	_, err := s.Log(context.Background(), &wire.LogLine{Host: "h"})
	assert.Check(t, err != nil)
	assert.Equal(t, status.Code(err), codes.InvalidArgument)
}

func TestLogReturnsUnavailableWhenQueueClosed(t *testing.T) {
	s, out := newTestServer(1)
	out.Close()

	_, err := s.Log(context.Background(), validSyslogLine())
	assert.Check(t, err != nil)
	assert.Equal(t, status.Code(err), codes.Unavailable)
}

func TestReportMetricsTouchesShipperAndRecordsCounters(t *testing.T) {
	s, _ := newTestServer(1)
	_, err := s.ReportMetrics(context.Background(), &wire.Metrics{
		Hostname:       "web-01",
		QueueCount:     map[string]uint64{"syslog_in": 3},
		ProcessedCount: map[string]uint64{"syslog_in": 10},
		ErrorCount:     map[string]uint64{"syslog_in": 0},
	})
	assert.NilError(t, err)
	assert.DeepEqual(t, s.shippers.Connected(), []string{"web-01"})
}
