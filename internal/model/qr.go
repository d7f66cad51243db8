package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QRFormat is the output encoding of a generated QR code.
type QRFormat int

const (
	QRFormatPNG QRFormat = iota
	QRFormatText
)

func (f QRFormat) String() string {
	switch f {
	case QRFormatPNG:
		return "png"
	case QRFormatText:
		return "text"
	}
	return fmt.Sprintf("QRFormat(%d)", int(f))
}

// ContentType returns the MIME type of the rendered image.
func (f QRFormat) ContentType() string {
	switch f {
	case QRFormatPNG:
		return "image/png"
	case QRFormatText:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// ParseQRFormat converts a wire name into a QRFormat. Empty means PNG.
func ParseQRFormat(s string) (QRFormat, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return QRFormatPNG, nil
	case "text", "txt":
		return QRFormatText, nil
	}
	return 0, fmt.Errorf("unsupported qr format %q", s)
}

func (f QRFormat) MarshalJSON() ([]byte, error) { return json.Marshal(f.String()) }

func (f *QRFormat) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseQRFormat(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ErrorCorrection is the QR error correction level.
type ErrorCorrection int

const (
	ErrorCorrectionLow ErrorCorrection = iota
	ErrorCorrectionMedium
	ErrorCorrectionQuartile
	ErrorCorrectionHigh
)

func (e ErrorCorrection) String() string {
	switch e {
	case ErrorCorrectionLow:
		return "L"
	case ErrorCorrectionMedium:
		return "M"
	case ErrorCorrectionQuartile:
		return "Q"
	case ErrorCorrectionHigh:
		return "H"
	}
	return fmt.Sprintf("ErrorCorrection(%d)", int(e))
}

// ParseErrorCorrection converts L/M/Q/H (or LOW/MEDIUM/QUARTILE/HIGH) into a
// level. Empty means Q.
func ParseErrorCorrection(s string) (ErrorCorrection, error) {
	switch strings.ToUpper(s) {
	case "L", "LOW":
		return ErrorCorrectionLow, nil
	case "M", "MEDIUM":
		return ErrorCorrectionMedium, nil
	case "", "Q", "QUARTILE":
		return ErrorCorrectionQuartile, nil
	case "H", "HIGH":
		return ErrorCorrectionHigh, nil
	}
	return 0, fmt.Errorf("unsupported error correction level %q", s)
}

func (e ErrorCorrection) MarshalJSON() ([]byte, error) { return json.Marshal(e.String()) }

func (e *ErrorCorrection) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseErrorCorrection(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// QRCode is a generated and stored QR image.
type QRCode struct {
	ID              string          `json:"qrId"`
	Data            string          `json:"data"`
	Format          QRFormat        `json:"format"`
	Size            int             `json:"size"`
	ErrorCorrection ErrorCorrection `json:"errorCorrection"`
	Image           []byte          `json:"-"`
	OwnerID         string          `json:"userId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}
