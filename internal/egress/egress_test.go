package egress

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gotest.tools/v3/assert"

	"rlog/internal/metrics"
	"rlog/internal/wire"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func newTestEgress() *Egress {
	return &Egress{
		snap: metrics.NewShipper(prometheus.NewRegistry()),
		log:  logrus.NewEntry(logrus.StandardLogger()),
	}
}

type fakeClient struct {
	logErr error
}

func (f *fakeClient) Log(ctx context.Context, in *wire.LogLine, opts ...grpc.CallOption) (*wire.Empty, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	return &wire.Empty{}, nil
}

func (f *fakeClient) ReportMetrics(ctx context.Context, in *wire.Metrics, opts ...grpc.CallOption) (*wire.Empty, error) {
	return &wire.Empty{}, nil
}

func TestSendDropsOnInvalidArgument(t *testing.T) {
	e := newTestEgress()
	client := &fakeClient{logErr: status.Error(codes.InvalidArgument, "bad record")}

	retry, err := e.send(context.Background(), client, &wire.LogLine{})
	assert.Check(t, err != nil)
	assert.Check(t, !retry)
}

func TestSendDropsOnOutOfRange(t *testing.T) {
	e := newTestEgress()
	client := &fakeClient{logErr: status.Error(codes.OutOfRange, "too big")}

	retry, err := e.send(context.Background(), client, &wire.LogLine{})
	assert.Check(t, err != nil)
	assert.Check(t, !retry)
}

func TestSendRetriesOnUnavailable(t *testing.T) {
	e := newTestEgress()
	client := &fakeClient{logErr: status.Error(codes.Unavailable, "down")}

	retry, err := e.send(context.Background(), client, &wire.LogLine{})
	assert.Check(t, err != nil)
	assert.Check(t, retry)
}

func TestSendSucceeds(t *testing.T) {
	e := newTestEgress()
	client := &fakeClient{}

	retry, err := e.send(context.Background(), client, &wire.LogLine{})
	assert.NilError(t, err)
	assert.Check(t, !retry)
}
