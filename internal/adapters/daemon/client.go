// Package daemon runs the query engine in a long-lived background process and
// talks to it over gRPC on a unix socket.
package daemon

import (
	"context"
	"time"

	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Client implements ports.DaemonClient.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the daemon listening on socketPath.
// The connection is established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(CallOptions()...),
	)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "daemon client creation failed"), "socket", socketPath)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection. The connection must use the
// daemon codec, see CallOptions.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return clientError(err)
	}
	return nil
}

// clientError turns a gRPC status into a zerr error, keeping
// ErrDaemonUnavailable detectable when the socket cannot be reached.
func clientError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.Unavailable {
		return zerr.Wrap(err, domain.ErrDaemonUnavailable.Error())
	}
	return zerr.With(zerr.New(st.Message()), "code", st.Code().String())
}

// Ping implements ports.DaemonClient.
func (c *Client) Ping(ctx context.Context) error {
	return c.invoke(ctx, "Ping", &PingRequest{}, &PingResponse{})
}

// Query implements ports.DaemonClient.
func (c *Client) Query(ctx context.Context, request string) (*ports.QueryResult, error) {
	var resp QueryResponse
	if err := c.invoke(ctx, "Query", &QueryRequest{Query: request}, &resp); err != nil {
		return nil, err
	}
	payload := resp.Payload
	if payload == nil {
		payload = []byte{}
	}
	return &ports.QueryResult{Payload: payload, Diagnostics: resp.Diagnostics}, nil
}

// Invalidate implements ports.DaemonClient.
func (c *Client) Invalidate(ctx context.Context) error {
	return c.invoke(ctx, "Invalidate", &InvalidateRequest{}, &InvalidateResponse{})
}

// Status implements ports.DaemonClient.
func (c *Client) Status(ctx context.Context) (*ports.DaemonStatus, error) {
	var resp StatusResponse
	if err := c.invoke(ctx, "Status", &StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &ports.DaemonStatus{
		Running:       resp.Running,
		PID:           int(resp.Pid),
		Uptime:        time.Duration(resp.UptimeSeconds) * time.Second,
		LastActivity:  time.Unix(resp.LastActivityUnix, 0),
		IdleRemaining: time.Duration(resp.IdleRemainingSeconds) * time.Second,
		QueriesServed: resp.QueriesServed,
	}, nil
}

// Shutdown implements ports.DaemonClient.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.invoke(ctx, "Shutdown", &ShutdownRequest{}, &ShutdownResponse{})
}

// Close implements ports.DaemonClient.
func (c *Client) Close() error {
	return c.conn.Close()
}
