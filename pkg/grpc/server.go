// Package grpc runs the operational gRPC endpoint: the standard health
// service, whose status follows a readiness check, plus reflection.
//
//	srv, err := grpc.Start(config.GRPCPort(), database.Ping)
//	defer srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
)

// ServiceName is the health service entry reporting the API's readiness.
const ServiceName = "canteen.API"

const readinessInterval = 10 * time.Second

// Readiness reports whether the backing services are reachable.
type Readiness func(ctx context.Context) error

type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	stop   context.CancelFunc
}

func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered", "method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// observeInterceptor logs each call and records it in the metrics registry.
func observeInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	took := time.Since(start)
	code := status.Code(err)

	metrics.GRPCHandled.WithLabelValues(info.FullMethod, code.String()).Inc()
	metrics.GRPCDuration.WithLabelValues(info.FullMethod).Observe(took.Seconds())
	logger.WithCtx(ctx).Debug("grpc: request", "method", info.FullMethod, "code", code.String(), "took", took.String())
	return resp, err
}

// Start listens on port and serves in the background. A nil Readiness keeps the
// service SERVING.
func Start(port string, ready Readiness) (*Server, error) {
	return listen(":"+port, ready)
}

func listen(addr string, ready Readiness) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on %s: %w", addr, err)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(4<<20),
		grpc.MaxSendMsgSize(4<<20),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{srv: srv, health: hs, lis: lis, stop: cancel}
	s.check(ctx, ready)
	if ready != nil {
		go s.watch(ctx, ready)
	}

	logger.Info("grpc: listening", "addr", lis.Addr().String())
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc: serve", "error", err)
		}
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string { return s.lis.Addr().String() }

func (s *Server) watch(ctx context.Context, ready Readiness) {
	t := time.NewTicker(readinessInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.check(ctx, ready)
		}
	}
}

func (s *Server) check(ctx context.Context, ready Readiness) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if ready != nil {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := ready(pctx)
		cancel()
		if err != nil {
			logger.Warn("grpc: readiness check failed", "error", err)
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop marks the service as shutting down and waits for in-flight calls.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.stop()
	s.health.Shutdown()
	s.srv.GracefulStop()
	logger.Info("grpc: stopped")
}
