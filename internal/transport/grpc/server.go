package grpc

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type ServerOptions struct {
	RequestTimeout time.Duration
	RateLimiter    *PeerRateLimiter
	Metrics        *Metrics
}

// NewServer builds a gRPC server exposing the scheduling service and the
// standard health service. The health status of the scheduling service
// starts as SERVING.
func NewServer(srv SchedulingServiceServer, opts ServerOptions, extra ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	var interceptors []grpc.UnaryServerInterceptor
	if opts.Metrics != nil {
		interceptors = append(interceptors, opts.Metrics.Unary())
	}
	if opts.RateLimiter != nil {
		interceptors = append(interceptors, opts.RateLimiter.Unary())
	}
	interceptors = append(interceptors, DefaultRequestTimeout(opts.RequestTimeout))

	serverOpts := append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}, extra...)
	s := grpc.NewServer(serverOpts...)
	RegisterSchedulingServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}

// ServiceName is the fully qualified name used for health checks.
func ServiceName() string {
	return serviceName
}
