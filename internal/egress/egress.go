// Package egress implements the gRPC client side of the shipper->collector
// channel: a long-lived connection with a 1s connect-retry
// loop, a single in-flight send loop, and an independent 30s metrics
// report.
package egress

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"rlog/internal/metrics"
	"rlog/internal/queue"
	"rlog/internal/wire"
)

// MetricsReportInterval matches the original's 30s background report cadence.
const MetricsReportInterval = 30 * time.Second

// connectRetryDelay is the fixed 1s backoff between connection attempts.
// A constant backoff.Constant policy from cenkalti/backoff/v5 reproduces
// the original's plain tokio::time::sleep(1s) retry loop.
const connectRetryDelay = time.Second

// Egress owns the gRPC connection to a collector and drains in from a
// single record at a time.
type Egress struct {
	target string
	creds  credentials.TransportCredentials
	in     *queue.Queue[*wire.LogLine]
	snap   *metrics.Shipper
	log    *logrus.Entry
}

// New builds an Egress that will dial target using creds (mTLS)
// and drain records from in.
func New(target string, creds credentials.TransportCredentials, in *queue.Queue[*wire.LogLine], snap *metrics.Shipper, log *logrus.Entry) *Egress {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Egress{target: target, creds: creds, in: in, snap: snap, log: log.WithField("component", "grpc_out")}
}

// Run connects and ships records until ctx is canceled. It returns nil on
// a clean shutdown (in closed, or ctx canceled during an idle wait) and a
// non-nil error only if the connect loop itself was aborted by ctx
// cancellation before ever reaching a connected client.
func (e *Egress) Run(ctx context.Context) error {
	conn, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := wire.NewLogCollectorClient(conn)

	var pending *wire.LogLine
	ticker := time.NewTicker(MetricsReportInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if pending == nil {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-e.in.Receiver():
				if !ok {
					return nil
				}
				pending = v
				e.snap.IncDepth(metrics.QueueGrpcOut, -1)
			case <-ticker.C:
				e.reportMetrics(ctx, client)
				continue
			}
		}

		retry, sendErr := e.send(ctx, client, pending)
		if sendErr != nil {
			e.snap.IncError(metrics.QueueGrpcOut)
			if !retry {
				pending = nil
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		e.snap.IncProcessed(metrics.QueueGrpcOut)
		pending = nil
	}
}

// send ships one record. The bool return reports whether the record
// should be retried: InvalidArgument/OutOfRange drop the record;
// everything else, including Unavailable, retries after 1s.
func (e *Egress) send(ctx context.Context, client wire.LogCollectorClient, ll *wire.LogLine) (retry bool, err error) {
	_, grpcErr := client.Log(ctx, ll)
	if grpcErr == nil {
		return false, nil
	}

	st, _ := status.FromError(grpcErr)
	switch st.Code() {
	case codes.InvalidArgument:
		e.log.WithError(grpcErr).Error("collector rejected record as invalid, dropping it")
		return false, grpcErr
	case codes.OutOfRange:
		e.log.WithError(grpcErr).Error("collector reported record too large, dropping it")
		return false, grpcErr
	default:
		e.log.WithError(grpcErr).Error("unable to ship record, will retry")
		return true, grpcErr
	}
}

func (e *Egress) reportMetrics(ctx context.Context, client wire.LogCollectorClient) {
	if _, err := client.ReportMetrics(ctx, e.snap.Snapshot()); err != nil {
		e.log.WithError(err).Error("unable to report metrics")
	}
}

// connect retries with a 1s fixed backoff until it succeeds or ctx is
// canceled. The original's "tonic will try to reconnect in background"
// is replaced here by our own explicit retry loop, since grpc-go's
// WithBlock dial also just returns an error on failure rather than
// retrying transparently.
func (e *Egress) connect(ctx context.Context) (*grpc.ClientConn, error) {
	policy := backoff.NewConstantBackOff(connectRetryDelay)
	var conn *grpc.ClientConn

	operation := func() (*grpc.ClientConn, error) {
		e.log.Info("connecting to collector")
		c, err := grpc.NewClient(e.target,
			grpc.WithTransportCredentials(e.creds),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 60 * time.Second}),
		)
		if err != nil {
			e.log.WithError(err).Error("unable to connect to collector grpc endpoint")
			return nil, err
		}
		e.log.Info("connected to collector")
		return c, nil
	}

	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(policy))
	if err != nil {
		return nil, err
	}
	conn = result
	return conn, nil
}
