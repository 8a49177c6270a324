// ============================================================================
// Simulation Service
// ============================================================================
//
// Package: internal/server
// File: server.go
// Purpose: Exposes the scheduling engine over gRPC.
//
// Service:
//   cpusched.v1.Simulator/Simulate
//
//   Request and response are google.protobuf.Struct values, so the service
//   needs no generated code:
//
//   request  {algorithm: "rr", quantum: 2, trace: true,
//             jobs: [{id: 1, arrival: 0, burst: 5}, ...]}
//   response {algorithm: "rr", quantum: 2, elapsed: 8, preemptions: 0,
//             requeues: 3, completions: [{id: 1, completion: 8}, ...],
//             events: ["At time 0, job 1 READY", ...]}
//
//   events is present only when trace is true. Malformed requests and
//   requests over the configured Limits fail with codes.InvalidArgument,
//   engine panics with codes.Internal.
//
// Each call runs its own engine, so calls never share state. The metrics
// collector is the only shared component and is safe for concurrent use.
//
// ============================================================================

package server

import (
	"context"
	"fmt"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/internal/metrics"
	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "cpusched.v1.Simulator"
	// SimulateMethod is the full method name of Simulate.
	SimulateMethod = "/" + ServiceName + "/Simulate"
)

// SimulatorServer is the server API of the Simulator service.
type SimulatorServer interface {
	Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server implements SimulatorServer.
type Server struct {
	logger  *zap.Logger
	metrics *metrics.Collector
	limits  Limits
}

// NewServer creates the service with DefaultLimits. collector may be nil.
func NewServer(logger *zap.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger.Named("server"), metrics: collector, limits: DefaultLimits}
}

// WithLimits replaces the request limits. Zero fields keep their defaults.
func (s *Server) WithLimits(l Limits) *Server {
	s.limits = l.withDefaults()
	return s
}

// Simulate runs one simulation described by req.
func (s *Server) Simulate(ctx context.Context, req *structpb.Struct) (resp *structpb.Struct, err error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	sr, err := decodeRequest(req, s.limits)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var rec *trace.Recorder
	sinks := []trace.Sink{}
	if sr.Trace {
		rec = &trace.Recorder{}
		sinks = append(sinks, rec)
	}
	if s.metrics != nil {
		sinks = append(sinks, s.metrics)
	}

	eng, err := engine.New(sr.Config, trace.Multi(sinks...))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	callID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("simulation panicked", zap.String("call_id", callID), zap.Any("panic", r))
			resp, err = nil, status.Error(codes.Internal, fmt.Sprintf("simulation failed: %v", r))
		}
	}()

	res := eng.Run(sr.Jobs)
	if s.metrics != nil {
		s.metrics.RecordRun(res)
	}
	s.logger.Debug("simulate",
		zap.String("call_id", callID),
		zap.String("algorithm", string(res.Algorithm)),
		zap.Int("jobs", len(res.Jobs)),
		zap.Int("elapsed", res.Elapsed),
	)

	return encodeResponse(res, rec)
}

// ============================================================================
// Service registration
// ============================================================================

// Register adds srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SimulatorServer) {
	s.RegisterService(&simulatorServiceDesc, srv)
}

var simulatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Simulate",
			Handler:    simulateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cpusched/v1/simulator.proto",
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulatorServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SimulateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulatorServer).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ============================================================================
// Client
// ============================================================================

// Client calls the Simulator service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Simulate invokes the remote Simulate method.
func (c *Client) Simulate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SimulateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
