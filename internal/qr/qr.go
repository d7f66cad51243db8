// Package qr renders and stores QR codes.
package qr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/model"
)

// Input bounds.
const (
	MaxDataLength = 4096
	DefaultSize   = 256
	MinSize       = 64
	MaxSize       = 2048

	DefaultRetention = 24 * time.Hour
	DefaultMaxStored = 10_000
	sweepInterval    = time.Minute
)

// GenerateInput defines a QR code request.
type GenerateInput struct {
	Data            string
	Size            int
	ErrorCorrection model.ErrorCorrection
	Format          model.QRFormat
	UserID          string
}

// Service generates QR codes and keeps them for later retrieval. Codes older
// than the retention period are dropped, and once more than maxStored codes
// are held the oldest go first.
type Service struct {
	mu        sync.RWMutex
	codes     map[string]*model.QRCode
	order     []string
	retention time.Duration
	maxStored int
	lastSweep time.Time
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRetention sets how long generated codes stay retrievable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithMaxStored caps the number of retained codes.
func WithMaxStored(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxStored = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an empty QR service.
func NewService(logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	s := &Service{
		codes:     make(map[string]*model.QRCode),
		retention: DefaultRetention,
		maxStored: DefaultMaxStored,
		logger:    logger.With("component", "qr"),
		metrics:   recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate renders and stores a QR code.
func (s *Service) Generate(_ context.Context, in GenerateInput) (*model.QRCode, error) {
	if in.Size == 0 {
		in.Size = DefaultSize
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	image, err := render(in)
	if err != nil {
		return nil, err
	}

	code := &model.QRCode{
		ID:              uuid.NewString(),
		Data:            in.Data,
		Format:          in.Format,
		Size:            in.Size,
		ErrorCorrection: in.ErrorCorrection,
		Image:           image,
		OwnerID:         in.UserID,
		CreatedAt:       s.now(),
	}

	s.mu.Lock()
	s.codes[code.ID] = code
	s.order = append(s.order, code.ID)
	s.evict(code.CreatedAt)
	s.mu.Unlock()

	s.metrics.IncQRGenerated()
	s.logger.Info("qr_generated", "qr_id", code.ID, "format", code.Format.String(), "size", code.Size)
	return code, nil
}

// Get returns a stored QR code. A caller naming another owner is rejected.
func (s *Service) Get(_ context.Context, id, userID string) (*model.QRCode, error) {
	s.mu.RLock()
	code, ok := s.codes[id]
	s.mu.RUnlock()
	if !ok || s.expired(code, s.now()) {
		return nil, model.ErrQRNotFound
	}
	if userID != "" && code.OwnerID != "" && code.OwnerID != userID {
		return nil, model.ErrForbidden
	}
	return code, nil
}

// Delete removes a stored QR code.
func (s *Service) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[id]
	if !ok || s.expired(code, s.now()) {
		return model.ErrQRNotFound
	}
	if userID != "" && code.OwnerID != "" && code.OwnerID != userID {
		return model.ErrForbidden
	}
	delete(s.codes, id)
	s.logger.Info("qr_deleted", "qr_id", id)
	return nil
}

func (s *Service) expired(code *model.QRCode, now time.Time) bool {
	return now.Sub(code.CreatedAt) > s.retention
}

// evict drops codes beyond the cap, and expired codes at most once per
// sweepInterval. order is creation order, so both pop from the front.
// Caller holds s.mu.
func (s *Service) evict(now time.Time) {
	sweep := now.Sub(s.lastSweep) >= sweepInterval
	if sweep {
		s.lastSweep = now
	}

	n := 0
	for ; n < len(s.order); n++ {
		code, ok := s.codes[s.order[n]]
		if !ok {
			continue
		}
		if len(s.codes) > s.maxStored || (sweep && s.expired(code, now)) {
			delete(s.codes, code.ID)
			continue
		}
		break
	}
	if n > 0 {
		s.order = append(s.order[:0:0], s.order[n:]...)
	}
}

func validate(in GenerateInput) error {
	var fields []model.FieldError
	switch {
	case in.Data == "":
		fields = append(fields, model.FieldError{Field: "data", Message: "is required"})
	case len(in.Data) > MaxDataLength:
		fields = append(fields, model.FieldError{Field: "data", Message: fmt.Sprintf("must be at most %d characters", MaxDataLength)})
	}
	if in.Size < MinSize || in.Size > MaxSize {
		fields = append(fields, model.FieldError{Field: "size", Message: fmt.Sprintf("must be between %d and %d", MinSize, MaxSize)})
	}
	if len(fields) > 0 {
		return model.ErrValidation.WithFields(fields...)
	}
	return nil
}

// render encodes in.Data. Encoder failures mean the data does not fit a
// symbol at the requested level and are reported against the data field.
func render(in GenerateInput) ([]byte, error) {
	q, err := qrcode.New(in.Data, recoveryLevel(in.ErrorCorrection))
	if err != nil {
		return nil, model.ErrValidation.WithFields(model.FieldError{
			Field:   "data",
			Message: fmt.Sprintf("cannot be encoded at error correction level %s: %v", in.ErrorCorrection, err),
		})
	}

	switch in.Format {
	case model.QRFormatPNG:
		image, err := q.PNG(in.Size)
		if err != nil {
			return nil, model.ErrInternal.Wrap(fmt.Errorf("render qr code: %w", err))
		}
		return image, nil
	case model.QRFormatText:
		return []byte(q.ToSmallString(false)), nil
	}
	return nil, model.ErrInternal.Wrap(fmt.Errorf("unsupported format %s", in.Format))
}

func recoveryLevel(ec model.ErrorCorrection) qrcode.RecoveryLevel {
	switch ec {
	case model.ErrorCorrectionLow:
		return qrcode.Low
	case model.ErrorCorrectionMedium:
		return qrcode.Medium
	case model.ErrorCorrectionQuartile:
		return qrcode.High
	case model.ErrorCorrectionHigh:
		return qrcode.Highest
	}
	return qrcode.High
}
