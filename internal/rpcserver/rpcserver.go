// Package rpcserver implements the collector-side RPC ingress, grounded
// on rlog-collector/src/grpc_server.rs.
package rpcserver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rlog/internal/logline"
	"rlog/internal/metrics"
	"rlog/internal/queue"
	"rlog/internal/shippers"
	"rlog/internal/wire"
)

// Server implements wire.LogCollectorServer.
type Server struct {
	wire.UnimplementedLogCollectorServer

	out       *queue.Queue[*logline.IndexLogEntry]
	shippers  *shippers.Registry
	collector *metrics.Collector
	log       *logrus.Entry
	now       func() time.Time
}

// New builds a Server that converts LogLine calls to IndexLogEntry and
// hands them to out, and records ReportMetrics calls against reg/collector.
func New(out *queue.Queue[*logline.IndexLogEntry], reg *shippers.Registry, collector *metrics.Collector, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		out:       out,
		shippers:  reg,
		collector: collector,
		log:       log.WithField("component", "grpc_server"),
		now:       time.Now,
	}
}

// Log converts in to an IndexLogEntry and enqueues it for the batcher
//: InvalidArgument on conversion failure, Unavailable if the
// output queue has already been closed for shutdown.
func (s *Server) Log(ctx context.Context, in *wire.LogLine) (*wire.Empty, error) {
	entry, err := logline.FromLogLine(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.out.Send(ctx, entry); err != nil {
		return nil, status.Error(codes.Unavailable, "shutdown in progress")
	}
	return &wire.Empty{}, nil
}

// ReportMetrics records the reporting host's last-seen time and folds its
// counters into the process-wide Prometheus metrics. Always
// succeeds.
func (s *Server) ReportMetrics(ctx context.Context, in *wire.Metrics) (*wire.Empty, error) {
	s.shippers.Touch(in.Hostname, s.now())
	s.collector.Report(in.Hostname, in.QueueCount, in.ProcessedCount, in.ErrorCount)
	return &wire.Empty{}, nil
}
