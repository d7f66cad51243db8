package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/linkgate/linkgate/internal/analytics"
	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/shortcode"
	"github.com/linkgate/linkgate/internal/store"
	"github.com/linkgate/linkgate/internal/testutil"
	"github.com/linkgate/linkgate/internal/tracker"
	"github.com/linkgate/linkgate/internal/validation"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	logger := testutil.DiscardLogger()

	gen, err := shortcode.NewGenerator(shortcode.DefaultLength)
	require.NoError(t, err)
	log := tracker.NewMemoryLog()
	st := store.NewMemory(gen, store.WithPurger(log))
	tr := tracker.New(log, tracker.Config{Logger: logger})
	links := service.NewLinkService(st, tr, analytics.New(log), service.Config{BaseURL: "https://sho.rt", Logger: logger})

	v := validation.New()
	srv := NewServer(
		NewLinkServer(links, v, logger),
		NewQRServer(qr.NewService(logger, nil), v, logger),
		logger,
	)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLinkShortener_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	created, err := c.CreateLink(ctx, &dto.ShortenRequest{URL: "https://example.com/grpc", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "https://sho.rt/"+created.ShortCode, created.ShortURL)

	resolved, err := c.ResolveLink(ctx, &dto.ResolveRequest{ShortCode: created.ShortCode, ClientIP: "198.51.100.9"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/grpc", resolved.OriginalURL)
	assert.EqualValues(t, 1, resolved.ClickCount)

	// Peer address stands in for a missing client IP.
	_, err = c.ResolveLink(ctx, &dto.ResolveRequest{ShortCode: created.ShortCode})
	require.NoError(t, err)

	stats, err := c.GetStats(ctx, &dto.StatsRequest{ShortCode: created.ShortCode, UserID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Stats.TotalClicks)

	analyticsResp, err := c.GetAnalytics(ctx, &dto.StatsRequest{ShortCode: created.ShortCode, Granularity: "hour"})
	require.NoError(t, err)
	assert.Equal(t, model.GranularityHour, analyticsResp.Stats.Granularity)

	list, err := c.ListLinks(ctx, &dto.ListRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list.URLs, 1)

	newURL := "https://example.com/moved"
	updated, err := c.UpdateLink(ctx, &dto.UpdateRequest{ShortCode: created.ShortCode, UserID: "u1", OriginalURL: &newURL})
	require.NoError(t, err)
	assert.Equal(t, newURL, updated.OriginalURL)

	deleted, err := c.DeleteLink(ctx, &dto.DeleteRequest{ShortCode: created.ShortCode, UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
}

func TestLinkShortener_Bulk(t *testing.T) {
	t.Parallel()
	c := newTestClient(t)

	result, err := c.BulkShorten(context.Background(), &dto.BulkRequest{URLs: []string{"https://a.example", "nope"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestLinkShortener_ErrorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateLink(ctx, &dto.ShortenRequest{URL: "https://example.com", CustomCode: "taken"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     func() error
		kind     model.ErrorKind
		sentinel error
	}{
		{"validation", func() error {
			_, err := c.CreateLink(ctx, &dto.ShortenRequest{})
			return err
		}, model.KindValidation, model.ErrValidation},
		{"conflict", func() error {
			_, err := c.CreateLink(ctx, &dto.ShortenRequest{URL: "https://example.org", CustomCode: "taken"})
			return err
		}, model.KindConflict, model.ErrAliasExists},
		{"not found", func() error {
			_, err := c.ResolveLink(ctx, &dto.ResolveRequest{ShortCode: "missing"})
			return err
		}, model.KindNotFound, model.ErrLinkNotFound},
		{"qr not found", func() error {
			_, err := c.GetQrCode(ctx, &dto.GetQRRequest{QRID: "missing"})
			return err
		}, model.KindNotFound, model.ErrQRNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestValidationFieldsSurviveTheTrailer(t *testing.T) {
	t.Parallel()
	c := newTestClient(t)

	_, err := c.CreateLink(context.Background(), &dto.ShortenRequest{})
	require.Error(t, err)
	var e *model.Error
	require.True(t, errors.As(err, &e))
	require.NotEmpty(t, e.Fields)
	assert.Equal(t, "url", e.Fields[0].Field)
	assert.Equal(t, codes.InvalidArgument, status.Code(e.Err))
}

func TestQrCodeGenerator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	created, err := c.GenerateQrCode(ctx, &dto.QRRequest{Data: "https://sho.rt/abc1234"})
	require.NoError(t, err)
	assert.Equal(t, "png", created.Format)
	assert.NotEmpty(t, created.Image)

	got, err := c.GetQrCode(ctx, &dto.GetQRRequest{QRID: created.QRID})
	require.NoError(t, err)
	assert.Equal(t, created.Image, got.Image)
}

func TestHealthService(t *testing.T) {
	t.Parallel()
	c := newTestClient(t)

	resp, err := healthpb.NewHealthClient(c.Conn()).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: LinkServiceName},
		grpc.CallContentSubtype("proto"))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCodeMappingIsSymmetric(t *testing.T) {
	t.Parallel()
	for _, kind := range []model.ErrorKind{
		model.KindValidation, model.KindConflict, model.KindNotFound, model.KindExpired,
		model.KindForbidden, model.KindRateLimited, model.KindInternal,
	} {
		assert.Equal(t, kind, kindFor(codeFor(kind)), kind.String())
	}
}

func TestFromError_WithoutTrailer(t *testing.T) {
	t.Parallel()
	e := FromError(status.Error(codes.ResourceExhausted, "slow down"), metadata.MD{})
	assert.Equal(t, model.KindRateLimited, e.Kind)
	assert.Equal(t, "slow down", e.Message)

	e = FromError(errors.New("dial failed"), nil)
	assert.Equal(t, model.KindInternal, e.Kind)
}
