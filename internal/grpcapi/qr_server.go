package grpcapi

import (
	"context"
	"log/slog"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/validation"
)

// QRServer implements QrCodeGeneratorServer on top of the QR service.
type QRServer struct {
	svc      *qr.Service
	validate *validation.Validator
	logger   *slog.Logger
}

// NewQRServer creates a QRServer.
func NewQRServer(svc *qr.Service, v *validation.Validator, logger *slog.Logger) *QRServer {
	return &QRServer{svc: svc, validate: v, logger: logger.With("component", "grpc_qr")}
}

var _ QrCodeGeneratorServer = (*QRServer)(nil)

func (s *QRServer) GenerateQrCode(ctx context.Context, req *dto.QRRequest) (*dto.QRResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	in, err := req.ToInput()
	if err != nil {
		return nil, err
	}
	code, err := s.svc.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := dto.ToQRResponse(code)
	return &resp, nil
}

func (s *QRServer) GetQrCode(ctx context.Context, req *dto.GetQRRequest) (*dto.QRResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	code, err := s.svc.Get(ctx, req.QRID, req.UserID)
	if err != nil {
		return nil, err
	}
	resp := dto.ToQRResponse(code)
	return &resp, nil
}
