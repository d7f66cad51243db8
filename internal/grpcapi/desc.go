package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/service"
)

// Fully qualified service names.
const (
	LinkServiceName = "linkshortener.LinkShortener"
	QRServiceName   = "qrcode.QrCodeGenerator"
)

// LinkShortenerServer is the server API of linkshortener.LinkShortener.
type LinkShortenerServer interface {
	CreateLink(context.Context, *dto.ShortenRequest) (*dto.LinkResponse, error)
	ResolveLink(context.Context, *dto.ResolveRequest) (*dto.ResolveResponse, error)
	GetStats(context.Context, *dto.StatsRequest) (*dto.StatsResponse, error)
	GetAnalytics(context.Context, *dto.StatsRequest) (*dto.StatsResponse, error)
	BulkShorten(context.Context, *dto.BulkRequest) (*service.BulkResult, error)
	ListLinks(context.Context, *dto.ListRequest) (*dto.ListResponse, error)
	UpdateLink(context.Context, *dto.UpdateRequest) (*dto.LinkResponse, error)
	DeleteLink(context.Context, *dto.DeleteRequest) (*dto.DeleteResponse, error)
}

// QrCodeGeneratorServer is the server API of qrcode.QrCodeGenerator.
type QrCodeGeneratorServer interface {
	GenerateQrCode(context.Context, *dto.QRRequest) (*dto.QRResponse, error)
	GetQrCode(context.Context, *dto.GetQRRequest) (*dto.QRResponse, error)
}

// unary builds a method descriptor that decodes Req and dispatches to call
// through the server's interceptor chain.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// LinkShortenerServiceDesc describes linkshortener.LinkShortener.
var LinkShortenerServiceDesc = grpc.ServiceDesc{
	ServiceName: LinkServiceName,
	HandlerType: (*LinkShortenerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(LinkServiceName, "CreateLink", LinkShortenerServer.CreateLink),
		unary(LinkServiceName, "ResolveLink", LinkShortenerServer.ResolveLink),
		unary(LinkServiceName, "GetStats", LinkShortenerServer.GetStats),
		unary(LinkServiceName, "GetAnalytics", LinkShortenerServer.GetAnalytics),
		unary(LinkServiceName, "BulkShorten", LinkShortenerServer.BulkShorten),
		unary(LinkServiceName, "ListLinks", LinkShortenerServer.ListLinks),
		unary(LinkServiceName, "UpdateLink", LinkShortenerServer.UpdateLink),
		unary(LinkServiceName, "DeleteLink", LinkShortenerServer.DeleteLink),
	},
	Metadata: "linkshortener.proto",
}

// QrCodeGeneratorServiceDesc describes qrcode.QrCodeGenerator.
var QrCodeGeneratorServiceDesc = grpc.ServiceDesc{
	ServiceName: QRServiceName,
	HandlerType: (*QrCodeGeneratorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(QRServiceName, "GenerateQrCode", QrCodeGeneratorServer.GenerateQrCode),
		unary(QRServiceName, "GetQrCode", QrCodeGeneratorServer.GetQrCode),
	},
	Metadata: "qrcode.proto",
}
