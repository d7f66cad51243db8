package dto

import (
	"encoding/base64"
	"time"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/qr"
)

// QRRequest represents a QR generation call.
type QRRequest struct {
	Data            string `json:"data" validate:"required,max=4096"`
	Size            int    `json:"size,omitempty" validate:"omitempty,min=64,max=2048"`
	ErrorCorrection string `json:"errorCorrection,omitempty" validate:"omitempty,oneof=L M Q H LOW MEDIUM QUARTILE HIGH l m q h low medium quartile high"`
	Format          string `json:"format,omitempty" validate:"omitempty,oneof=png text PNG TEXT txt"`
	UserID          string `json:"userId,omitempty" validate:"max=128"`
}

// ToInput converts the request into QR service input.
func (r QRRequest) ToInput() (qr.GenerateInput, error) {
	ec, err := model.ParseErrorCorrection(r.ErrorCorrection)
	if err != nil {
		return qr.GenerateInput{}, model.ErrValidation.WithFields(model.FieldError{Field: "errorCorrection", Message: err.Error()})
	}
	format, err := model.ParseQRFormat(r.Format)
	if err != nil {
		return qr.GenerateInput{}, model.ErrValidation.WithFields(model.FieldError{Field: "format", Message: err.Error()})
	}
	return qr.GenerateInput{
		Data:            r.Data,
		Size:            r.Size,
		ErrorCorrection: ec,
		Format:          format,
		UserID:          r.UserID,
	}, nil
}

// GetQRRequest identifies a stored QR code.
type GetQRRequest struct {
	QRID   string `json:"qrId" validate:"required"`
	UserID string `json:"userId,omitempty"`
}

// QRResponse describes a QR code. Image is base64 for PNG and plain text for
// the text format.
type QRResponse struct {
	QRID            string    `json:"qrId"`
	Data            string    `json:"data"`
	Format          string    `json:"format"`
	ContentType     string    `json:"contentType"`
	Size            int       `json:"size"`
	ErrorCorrection string    `json:"errorCorrection"`
	Image           string    `json:"image"`
	UserID          string    `json:"userId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ToQRResponse converts a QR code model.
func ToQRResponse(code *model.QRCode) QRResponse {
	image := string(code.Image)
	if code.Format == model.QRFormatPNG {
		image = base64.StdEncoding.EncodeToString(code.Image)
	}
	return QRResponse{
		QRID:            code.ID,
		Data:            code.Data,
		Format:          code.Format.String(),
		ContentType:     code.Format.ContentType(),
		Size:            code.Size,
		ErrorCorrection: code.ErrorCorrection.String(),
		Image:           image,
		UserID:          code.OwnerID,
		CreatedAt:       code.CreatedAt,
	}
}

// DeleteQRResponse confirms a QR deletion.
type DeleteQRResponse struct {
	Deleted bool   `json:"deleted"`
	QRID    string `json:"qrId"`
}
