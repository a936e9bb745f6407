package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"net-monitor/internal/agent/version"
)

// Client talks to the snapshot service of a running daemon.
type Client struct {
	logger *slog.Logger
	target string
	conn   *grpc.ClientConn
}

// DialSocket connects to the daemon listening on a unix socket path.
func DialSocket(path string, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	return NewClient("unix://"+path, logger, opts...)
}

func NewClient(target string, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return &Client{logger: logger, target: target, conn: conn}, nil
}

func (c *Client) Snapshot(ctx context.Context, iface string) (SnapshotFrame, error) {
	var frame SnapshotFrame
	if err := c.conn.Invoke(ctx, methodSnapshot, &SnapshotRequest{Interface: iface}, &frame); err != nil {
		return SnapshotFrame{}, fmt.Errorf("snapshot: %w", err)
	}
	return frame, nil
}

func (c *Client) Routes(ctx context.Context, iface string) (RoutesFrame, error) {
	var frame RoutesFrame
	if err := c.conn.Invoke(ctx, methodRoutes, &RoutesRequest{Interface: iface}, &frame); err != nil {
		return RoutesFrame{}, fmt.Errorf("routes: %w", err)
	}
	return frame, nil
}

func (c *Client) Nameservers(ctx context.Context) ([]string, error) {
	var frame NameserversFrame
	if err := c.conn.Invoke(ctx, methodNameservers, &NameserversRequest{}, &frame); err != nil {
		return nil, fmt.Errorf("nameservers: %w", err)
	}
	return frame.Nameservers, nil
}

func (c *Client) Connections(ctx context.Context, proto string) (ConnectionsFrame, error) {
	var frame ConnectionsFrame
	if err := c.conn.Invoke(ctx, methodConnections, &ConnectionsRequest{Protocol: proto}, &frame); err != nil {
		return ConnectionsFrame{}, fmt.Errorf("connections: %w", err)
	}
	return frame, nil
}

func (c *Client) Version(ctx context.Context) (version.GetVersionResponse, error) {
	var resp version.GetVersionResponse
	if err := c.conn.Invoke(ctx, methodVersion, &version.GetVersionRequest{}, &resp); err != nil {
		return version.GetVersionResponse{}, fmt.Errorf("version: %w", err)
	}
	return resp, nil
}

// Watch calls fn for every frame until ctx is done, the server ends the
// stream or fn returns an error.
func (c *Client) Watch(ctx context.Context, iface string, fn func(SnapshotFrame) error) error {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}, methodWatch)
	if err != nil {
		return fmt.Errorf("open watch stream: %w", err)
	}
	if err := stream.SendMsg(&WatchRequest{Interface: iface}); err != nil {
		return fmt.Errorf("send watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("close watch send: %w", err)
	}
	for {
		var frame SnapshotFrame
		if err := stream.RecvMsg(&frame); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				c.logger.Debug("watch stream ended", "target", c.target)
				return nil
			}
			return fmt.Errorf("receive watch frame: %w", err)
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
