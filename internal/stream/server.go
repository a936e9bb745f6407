package stream

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"net-monitor/internal/agent/version"
	"net-monitor/internal/faults"
	"net-monitor/internal/model"
	"net-monitor/internal/system"
)

const serviceName = "netmon.v1.Monitor"

const (
	methodSnapshot    = "/" + serviceName + "/Snapshot"
	methodRoutes      = "/" + serviceName + "/Routes"
	methodNameservers = "/" + serviceName + "/Nameservers"
	methodConnections = "/" + serviceName + "/Connections"
	methodWatch       = "/" + serviceName + "/Watch"
	methodVersion     = "/" + serviceName + "/Version"
)

// Source is what the service reads from. The sampler provides the snapshot
// half and system.Tables the kernel tables.
type Source interface {
	Snapshot() model.Snapshot
	Subscribe() (<-chan model.Snapshot, func())
}

type TableSource interface {
	Routes() ([]model.Route, error)
	Nameservers() ([]string, error)
	Connections(proto string) ([]model.Connection, error)
}

type MonitorServer interface {
	Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotFrame, error)
	Routes(ctx context.Context, req *RoutesRequest) (*RoutesFrame, error)
	Nameservers(ctx context.Context, req *NameserversRequest) (*NameserversFrame, error)
	Connections(ctx context.Context, req *ConnectionsRequest) (*ConnectionsFrame, error)
	Watch(req *WatchRequest, stream grpc.ServerStream) error
	Version(ctx context.Context, req *version.GetVersionRequest) (*version.GetVersionResponse, error)
}

// VersionFunc answers the Version call. The daemon binds it to its config.
type VersionFunc func(req *version.GetVersionRequest) *version.GetVersionResponse

type Server struct {
	logger *slog.Logger
	source Source
	tables  TableSource
	version VersionFunc
	grpc    *grpc.Server
}

func NewServer(logger *slog.Logger, source Source, tables TableSource, versionFn VersionFunc, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:  logger,
		source:  source,
		tables:  tables,
		version: versionFn,
		grpc:    grpc.NewServer(opts...),
	}
	s.grpc.RegisterService(&monitorServiceDesc, s)
	return s
}

// Serve blocks until lis fails or Stop is called. A stopped server returns nil.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("snapshot service listening", "addr", lis.Addr().String())
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop drains in-flight calls until ctx is done, then closes every stream.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func (s *Server) Snapshot(_ context.Context, req *SnapshotRequest) (*SnapshotFrame, error) {
	frame, ok := NewSnapshotFrame(s.source.Snapshot(), req.Interface)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "interface %q is not tracked", req.Interface)
	}
	return &frame, nil
}

func (s *Server) Routes(_ context.Context, req *RoutesRequest) (*RoutesFrame, error) {
	routes, err := s.tables.Routes()
	if err != nil {
		return nil, tableError("routes", err)
	}
	frame := NewRoutesFrame(routes, req.Interface)
	return &frame, nil
}

func (s *Server) Nameservers(_ context.Context, _ *NameserversRequest) (*NameserversFrame, error) {
	servers, err := s.tables.Nameservers()
	if err != nil {
		return nil, tableError("nameservers", err)
	}
	return &NameserversFrame{Nameservers: servers}, nil
}

func (s *Server) Connections(_ context.Context, req *ConnectionsRequest) (*ConnectionsFrame, error) {
	if !system.ValidProtocol(req.Protocol) {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported protocol %q", req.Protocol)
	}
	conns, err := s.tables.Connections(req.Protocol)
	if err != nil {
		return nil, tableError("connections", err)
	}
	return &ConnectionsFrame{Protocol: req.Protocol, Connections: conns}, nil
}

func (s *Server) Version(_ context.Context, req *version.GetVersionRequest) (*version.GetVersionResponse, error) {
	if s.version == nil {
		return nil, status.Error(codes.Unimplemented, "version is not configured")
	}
	return s.version(req), nil
}

// Watch sends the current snapshot and then one frame per committed tick.
func (s *Server) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	updates, cancel := s.source.Subscribe()
	defer cancel()

	var last uint64
	send := func(snap model.Snapshot) error {
		if snap.Seq == 0 || snap.Seq <= last {
			return nil
		}
		last = snap.Seq
		frame, ok := NewSnapshotFrame(snap, req.Interface)
		if !ok {
			return status.Errorf(codes.NotFound, "interface %q is not tracked", req.Interface)
		}
		return stream.SendMsg(&frame)
	}

	if err := send(s.source.Snapshot()); err != nil {
		return err
	}
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if err := send(snap); err != nil {
				s.logger.Debug("watch stream closed", "error", err)
				return err
			}
		}
	}
}

func tableError(table string, err error) error {
	if faults.KindOf(err) == faults.Transient {
		return status.Errorf(codes.Unavailable, "read %s: %v", table, err)
	}
	return status.Errorf(codes.Internal, "read %s: %v", table, err)
}

func unaryHandler[Req any](call func(MonitorServer, context.Context, *Req) (any, error), method string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MonitorServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return call(srv.(MonitorServer), ctx, r.(*Req))
		})
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(MonitorServer).Watch(req, stream)
}

var monitorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler: unaryHandler(func(s MonitorServer, ctx context.Context, r *SnapshotRequest) (any, error) {
				return s.Snapshot(ctx, r)
			}, methodSnapshot),
		},
		{
			MethodName: "Routes",
			Handler: unaryHandler(func(s MonitorServer, ctx context.Context, r *RoutesRequest) (any, error) {
				return s.Routes(ctx, r)
			}, methodRoutes),
		},
		{
			MethodName: "Nameservers",
			Handler: unaryHandler(func(s MonitorServer, ctx context.Context, r *NameserversRequest) (any, error) {
				return s.Nameservers(ctx, r)
			}, methodNameservers),
		},
		{
			MethodName: "Connections",
			Handler: unaryHandler(func(s MonitorServer, ctx context.Context, r *ConnectionsRequest) (any, error) {
				return s.Connections(ctx, r)
			}, methodConnections),
		},
		{
			MethodName: "Version",
			Handler: unaryHandler(func(s MonitorServer, ctx context.Context, r *version.GetVersionRequest) (any, error) {
				return s.Version(ctx, r)
			}, methodVersion),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "netmon/v1/monitor",
}
