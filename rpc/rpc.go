package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/hideseek/logger"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "hideseek.Game"

// CheckFunc reports whether the game backend can serve requests.
type CheckFunc func(ctx context.Context) error

// Server manages the gRPC listener exposing the standard health service.
type Server struct {
	listener net.Listener
	address  string
	grpc     *grpc.Server
	health   *health.Server
	check    CheckFunc
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewServer creates a new gRPC server listening on addr. The serving status follows check,
// re-evaluated every interval.
func NewServer(addr string, check CheckFunc, interval time.Duration) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &Server{
		listener: listener,
		address:  listener.Addr().String(),
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		check:    check,
		interval: interval,
		stop:     make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.Refresh(context.Background())
	return s, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.address
}

// Start serves until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	go s.watch()
	if err := s.grpc.Serve(s.listener); err != nil {
		logger.Log.Errorf("RPC server stopped: %v", err)
		return
	}
	logger.Log.Info("RPC server listener closed.")
}

// Refresh runs the check once and publishes the result.
func (s *Server) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.check(ctx); err != nil {
		logger.Log.Warnw("health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Refresh(context.Background())
		}
	}
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.once.Do(func() {
		logger.Log.Info("Stopping RPC server.")
		close(s.stop)
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}
