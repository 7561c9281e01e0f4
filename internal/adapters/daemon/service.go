package daemon

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name of the daemon.
const ServiceName = "locus.daemon.v1.Daemon"

// PingRequest is the request of Daemon.Ping.
type PingRequest struct{}

// PingResponse is the response of Daemon.Ping.
type PingResponse struct {
	IdleRemainingSeconds int64 // 1
}

// QueryRequest is the request of Daemon.Query.
type QueryRequest struct {
	Query string // 1
}

// QueryResponse is the response of Daemon.Query.
type QueryResponse struct {
	Payload     []byte   // 1
	Diagnostics []string // 2, repeated
}

// InvalidateRequest is the request of Daemon.Invalidate.
type InvalidateRequest struct{}

// InvalidateResponse is the response of Daemon.Invalidate.
type InvalidateResponse struct{}

// StatusRequest is the request of Daemon.Status.
type StatusRequest struct{}

// StatusResponse is the response of Daemon.Status.
type StatusResponse struct {
	Running              bool  // 1
	Pid                  int64 // 2
	UptimeSeconds        int64 // 3
	LastActivityUnix     int64 // 4
	IdleRemainingSeconds int64 // 5
	QueriesServed        int64 // 6
}

// ShutdownRequest is the request of Daemon.Shutdown.
type ShutdownRequest struct{}

// ShutdownResponse is the response of Daemon.Shutdown.
type ShutdownResponse struct {
	Success bool // 1
}

// DaemonServer is the server API of the daemon service.
//
//nolint:revive // DaemonServer mirrors generated gRPC naming
type DaemonServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error)
}

// RegisterDaemonServer registers srv on s.
func RegisterDaemonServer(s grpc.ServiceRegistrar, srv DaemonServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", DaemonServer.Ping),
		unary("Query", DaemonServer.Query),
		unary("Invalidate", DaemonServer.Invalidate),
		unary("Status", DaemonServer.Status),
		unary("Shutdown", DaemonServer.Shutdown),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "locus/daemon/v1",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](
	method string,
	call func(DaemonServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv any,
			ctx context.Context,
			dec func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			//nolint:forcetypeassert // grpc only dispatches to the registered HandlerType
			server := srv.(DaemonServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req)) //nolint:forcetypeassert // decoded above
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
