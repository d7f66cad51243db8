package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/service"
)

// Client calls the link and QR services. Errors are returned as
// *model.Error rebuilt from the status and trailer.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a plaintext client for target. The connection is established
// lazily on the first call.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, req any) (*Resp, error) {
	var (
		out     = new(Resp)
		trailer metadata.MD
	)
	err := c.conn.Invoke(ctx, "/"+service+"/"+method, req, out, grpc.Trailer(&trailer))
	if err != nil {
		return nil, FromError(err, trailer)
	}
	return out, nil
}

func (c *Client) CreateLink(ctx context.Context, req *dto.ShortenRequest) (*dto.LinkResponse, error) {
	return invoke[dto.LinkResponse](ctx, c, LinkServiceName, "CreateLink", req)
}

func (c *Client) ResolveLink(ctx context.Context, req *dto.ResolveRequest) (*dto.ResolveResponse, error) {
	return invoke[dto.ResolveResponse](ctx, c, LinkServiceName, "ResolveLink", req)
}

func (c *Client) GetStats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	return invoke[dto.StatsResponse](ctx, c, LinkServiceName, "GetStats", req)
}

func (c *Client) GetAnalytics(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	return invoke[dto.StatsResponse](ctx, c, LinkServiceName, "GetAnalytics", req)
}

func (c *Client) BulkShorten(ctx context.Context, req *dto.BulkRequest) (*service.BulkResult, error) {
	return invoke[service.BulkResult](ctx, c, LinkServiceName, "BulkShorten", req)
}

func (c *Client) ListLinks(ctx context.Context, req *dto.ListRequest) (*dto.ListResponse, error) {
	return invoke[dto.ListResponse](ctx, c, LinkServiceName, "ListLinks", req)
}

func (c *Client) UpdateLink(ctx context.Context, req *dto.UpdateRequest) (*dto.LinkResponse, error) {
	return invoke[dto.LinkResponse](ctx, c, LinkServiceName, "UpdateLink", req)
}

func (c *Client) DeleteLink(ctx context.Context, req *dto.DeleteRequest) (*dto.DeleteResponse, error) {
	return invoke[dto.DeleteResponse](ctx, c, LinkServiceName, "DeleteLink", req)
}

func (c *Client) GenerateQrCode(ctx context.Context, req *dto.QRRequest) (*dto.QRResponse, error) {
	return invoke[dto.QRResponse](ctx, c, QRServiceName, "GenerateQrCode", req)
}

func (c *Client) GetQrCode(ctx context.Context, req *dto.GetQRRequest) (*dto.QRResponse, error) {
	return invoke[dto.QRResponse](ctx, c, QRServiceName, "GetQrCode", req)
}
