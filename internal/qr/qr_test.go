package qr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/testutil"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestService_GeneratePNG(t *testing.T) {
	t.Parallel()
	rec := metrics.NewInMemory()
	svc := NewService(testutil.DiscardLogger(), rec)

	code, err := svc.Generate(context.Background(), GenerateInput{Data: "https://example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, code.ID)
	assert.Equal(t, DefaultSize, code.Size)
	assert.Equal(t, model.QRFormatPNG, code.Format)
	assert.True(t, bytes.HasPrefix(code.Image, pngMagic))
	assert.EqualValues(t, 1, rec.Snapshot().QRGenerated)

	got, err := svc.Get(context.Background(), code.ID, "")
	require.NoError(t, err)
	assert.Equal(t, code.ID, got.ID)
}

func TestService_GenerateText(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.DiscardLogger(), nil)

	code, err := svc.Generate(context.Background(), GenerateInput{
		Data:            "hello",
		Format:          model.QRFormatText,
		ErrorCorrection: model.ErrorCorrectionLow,
	})
	require.NoError(t, err)
	assert.Greater(t, strings.Count(string(code.Image), "\n"), 5)
}

func TestService_GenerateValidation(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.DiscardLogger(), nil)

	tests := []struct {
		name  string
		in    GenerateInput
		field string
	}{
		{"empty data", GenerateInput{}, "data"},
		{"data too long", GenerateInput{Data: strings.Repeat("a", MaxDataLength+1)}, "data"},
		{"size too small", GenerateInput{Data: "x", Size: 10}, "size"},
		{"size too large", GenerateInput{Data: "x", Size: MaxSize + 1}, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tt.in)
			require.ErrorIs(t, err, model.ErrValidation)
			e := model.AsError(err)
			require.NotEmpty(t, e.Fields)
			assert.Equal(t, tt.field, e.Fields[0].Field)
		})
	}
}

func TestService_DataBeyondSymbolCapacity(t *testing.T) {
	t.Parallel()
	svc := NewService(testutil.DiscardLogger(), nil)

	// Fits the length limit but not a version 40 symbol at quartile.
	_, err := svc.Generate(context.Background(), GenerateInput{
		Data:            strings.Repeat("a", 3000),
		ErrorCorrection: model.ErrorCorrectionQuartile,
	})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	e := model.AsError(err)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "data", e.Fields[0].Field)

	_, err = svc.Generate(context.Background(), GenerateInput{
		Data:            strings.Repeat("a", 3000),
		Format:          model.QRFormatText,
		ErrorCorrection: model.ErrorCorrectionLow,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestService_RetentionAndCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(testutil.DiscardLogger(), nil,
		WithRetention(time.Hour),
		WithMaxStored(3),
		WithClock(func() time.Time { return now }),
	)

	var ids []string
	for i := 0; i < 4; i++ {
		code, err := svc.Generate(ctx, GenerateInput{Data: fmt.Sprintf("item-%d", i)})
		require.NoError(t, err)
		ids = append(ids, code.ID)
	}

	_, err := svc.Get(ctx, ids[0], "")
	assert.ErrorIs(t, err, model.ErrQRNotFound, "oldest code is evicted past the cap")
	_, err = svc.Get(ctx, ids[3], "")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Get(ctx, ids[3], "")
	assert.ErrorIs(t, err, model.ErrQRNotFound, "expired codes are not served")
	assert.ErrorIs(t, svc.Delete(ctx, ids[3], ""), model.ErrQRNotFound)

	fresh, err := svc.Generate(ctx, GenerateInput{Data: "fresh"})
	require.NoError(t, err)

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	assert.Len(t, svc.codes, 1, "expired codes are swept")
	assert.Equal(t, []string{fresh.ID}, svc.order)
}

func TestService_OwnerAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testutil.DiscardLogger(), nil)

	code, err := svc.Generate(ctx, GenerateInput{Data: "owned", UserID: "alice"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, code.ID, "bob")
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, code.ID, "bob"), model.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, code.ID, "alice"))
	_, err = svc.Get(ctx, code.ID, "")
	assert.ErrorIs(t, err, model.ErrQRNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, code.ID, ""), model.ErrQRNotFound)
}
