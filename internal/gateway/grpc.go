package gateway

import (
	"context"
	"errors"

	"google.golang.org/grpc/metadata"

	"github.com/linkgate/linkgate/internal/grpcapi"
	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/model"
)

// GRPCBackend calls the link and QR services over gRPC. links and qrs may
// be the same client when both services share a listener.
type GRPCBackend struct {
	links *grpcapi.Client
	qrs   *grpcapi.Client
}

// NewGRPCBackend creates a gRPC backend.
func NewGRPCBackend(links, qrs *grpcapi.Client) *GRPCBackend {
	return &GRPCBackend{links: links, qrs: qrs}
}

var _ Backend = (*GRPCBackend)(nil)

// Shorten calls LinkShortener.CreateLink.
func (b *GRPCBackend) Shorten(ctx context.Context, p ShortenPayload) (Payload, error) {
	resp, err := b.links.CreateLink(outgoing(ctx), &dto.ShortenRequest{
		URL:        p.URL,
		CustomCode: p.CustomCode,
		ExpiresAt:  p.ExpiresAt,
		UserID:     p.UserID,
		Metadata:   p.Metadata,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return toPayload(resp)
}

// GenerateQR calls QrCodeGenerator.GenerateQrCode.
func (b *GRPCBackend) GenerateQR(ctx context.Context, p QRPayload) (Payload, error) {
	resp, err := b.qrs.GenerateQrCode(outgoing(ctx), &dto.QRRequest{
		Data:            p.Text,
		Size:            p.Size,
		ErrorCorrection: p.ErrorCorrection,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return toPayload(resp)
}

// outgoing propagates the request id as call metadata.
func outgoing(ctx context.Context) context.Context {
	if id := middleware.GetRequestID(ctx); id != "" {
		return metadata.AppendToOutgoingContext(ctx, "x-request-id", id)
	}
	return ctx
}

// grpcError classifies client errors. Errors that never got a domain kind
// from the server stay unclassified.
func grpcError(err error) error {
	var e *model.Error
	if !errors.As(err, &e) || e.Kind == model.KindInternal {
		return unclassified(err)
	}
	return fromDomainError(e)
}
