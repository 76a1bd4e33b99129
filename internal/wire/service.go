package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This file is hand-written in the shape protoc-gen-go-grpc would produce
// from rlog.proto's LogCollector service, since no protoc invocation is
// available here (see marshal.go).

const (
	logCollectorLogFullMethod           = "/rlog.LogCollector/Log"
	logCollectorReportMetricsFullMethod = "/rlog.LogCollector/ReportMetrics"
)

// LogCollectorClient is the shipper-side RPC client.
type LogCollectorClient interface {
	Log(ctx context.Context, in *LogLine, opts ...grpc.CallOption) (*Empty, error)
	ReportMetrics(ctx context.Context, in *Metrics, opts ...grpc.CallOption) (*Empty, error)
}

type logCollectorClient struct {
	cc grpc.ClientConnInterface
}

// NewLogCollectorClient builds a client around an established connection.
func NewLogCollectorClient(cc grpc.ClientConnInterface) LogCollectorClient {
	return &logCollectorClient{cc}
}

func (c *logCollectorClient) Log(ctx context.Context, in *LogLine, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, logCollectorLogFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *logCollectorClient) ReportMetrics(ctx context.Context, in *Metrics, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, logCollectorReportMetricsFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LogCollectorServer is the collector-side RPC handler set.
type LogCollectorServer interface {
	Log(context.Context, *LogLine) (*Empty, error)
	ReportMetrics(context.Context, *Metrics) (*Empty, error)
}

// UnimplementedLogCollectorServer embeds into a real server for
// forward-compatibility, matching the protoc-gen-go-grpc convention.
type UnimplementedLogCollectorServer struct{}

func (UnimplementedLogCollectorServer) Log(context.Context, *LogLine) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Log not implemented")
}

func (UnimplementedLogCollectorServer) ReportMetrics(context.Context, *Metrics) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method ReportMetrics not implemented")
}

// RegisterLogCollectorServer registers srv with s under the LogCollector
// service name.
func RegisterLogCollectorServer(s grpc.ServiceRegistrar, srv LogCollectorServer) {
	s.RegisterService(&logCollectorServiceDesc, srv)
}

func logCollectorLogHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LogLine)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogCollectorServer).Log(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: logCollectorLogFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogCollectorServer).Log(ctx, req.(*LogLine))
	}
	return interceptor(ctx, in, info, handler)
}

func logCollectorReportMetricsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Metrics)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogCollectorServer).ReportMetrics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: logCollectorReportMetricsFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogCollectorServer).ReportMetrics(ctx, req.(*Metrics))
	}
	return interceptor(ctx, in, info, handler)
}

var logCollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: "rlog.LogCollector",
	HandlerType: (*LogCollectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Log", Handler: logCollectorLogHandler},
		{MethodName: "ReportMetrics", Handler: logCollectorReportMetricsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rlog.proto",
}
