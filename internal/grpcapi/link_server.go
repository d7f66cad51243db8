package grpcapi

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/tracker"
	"github.com/linkgate/linkgate/internal/validation"
)

// LinkServer implements LinkShortenerServer on top of the link service.
type LinkServer struct {
	svc      *service.LinkService
	validate *validation.Validator
	logger   *slog.Logger
}

// NewLinkServer creates a LinkServer.
func NewLinkServer(svc *service.LinkService, v *validation.Validator, logger *slog.Logger) *LinkServer {
	return &LinkServer{svc: svc, validate: v, logger: logger.With("component", "grpc_links")}
}

var _ LinkShortenerServer = (*LinkServer)(nil)

func (s *LinkServer) CreateLink(ctx context.Context, req *dto.ShortenRequest) (*dto.LinkResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	link, err := s.svc.Shorten(ctx, req.ToInput())
	if err != nil {
		return nil, err
	}
	resp := dto.ToLinkResponse(link, s.svc.ShortURL(link))
	return &resp, nil
}

// ResolveLink counts a click. Client metadata missing from the request is
// taken from the call's peer address and user-agent header.
func (s *LinkServer) ResolveLink(ctx context.Context, req *dto.ResolveRequest) (*dto.ResolveResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	link, err := s.svc.Resolve(ctx, req.ShortCode, clientInfo(ctx, req))
	if err != nil {
		return nil, err
	}
	resp := dto.ToResolveResponse(link)
	return &resp, nil
}

func (s *LinkServer) GetStats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	report, err := s.svc.GetStats(ctx, req.ShortCode, req.UserID)
	if err != nil {
		return nil, err
	}
	return s.statsResponse(report), nil
}

func (s *LinkServer) GetAnalytics(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	in, err := req.ToInput()
	if err != nil {
		return nil, err
	}
	report, err := s.svc.GetAnalytics(ctx, req.ShortCode, in)
	if err != nil {
		return nil, err
	}
	return s.statsResponse(report), nil
}

func (s *LinkServer) BulkShorten(ctx context.Context, req *dto.BulkRequest) (*service.BulkResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	return s.svc.BulkShorten(ctx, req.ToInput())
}

func (s *LinkServer) ListLinks(ctx context.Context, req *dto.ListRequest) (*dto.ListResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	q, err := req.ToQuery()
	if err != nil {
		return nil, err
	}
	result, err := s.svc.List(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := dto.ToListResponse(result, s.svc.ShortURL)
	return &resp, nil
}

func (s *LinkServer) UpdateLink(ctx context.Context, req *dto.UpdateRequest) (*dto.LinkResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	params, err := req.ToParams()
	if err != nil {
		return nil, err
	}
	link, err := s.svc.Update(ctx, req.ShortCode, req.UserID, params)
	if err != nil {
		return nil, err
	}
	resp := dto.ToLinkResponse(link, s.svc.ShortURL(link))
	return &resp, nil
}

func (s *LinkServer) DeleteLink(ctx context.Context, req *dto.DeleteRequest) (*dto.DeleteResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	link, err := s.svc.Delete(ctx, req.ShortCode, req.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.DeleteResponse{Deleted: true, ShortCode: link.ShortCode}, nil
}

func (s *LinkServer) statsResponse(report *service.LinkReport) *dto.StatsResponse {
	return &dto.StatsResponse{
		Link:  dto.ToLinkResponse(report.Link, s.svc.ShortURL(report.Link)),
		Stats: report.Stats,
	}
}

func clientInfo(ctx context.Context, req *dto.ResolveRequest) tracker.ClientInfo {
	info := tracker.ClientInfo{
		IP:          req.ClientIP,
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
		CountryHint: req.CountryHint,
	}
	if info.IP == "" {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			info.IP = middleware.HostOnly(p.Addr.String())
		}
	}
	if info.UserAgent == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ua := md.Get("user-agent"); len(ua) > 0 {
				info.UserAgent = ua[0]
			}
		}
	}
	return info
}
