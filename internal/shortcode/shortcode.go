// Package shortcode generates and validates short codes.
package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/linkgate/linkgate/internal/model"
)

const (
	// DefaultLength is the length of generated codes.
	DefaultLength = 7
	// MinLength and MaxLength bound the configurable generated length.
	MinLength = 6
	MaxLength = 8

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// aliasPattern: 3-20 chars, alphanumeric, hyphen or underscore.
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// ReservedAliases are codes that collide with service routes.
var ReservedAliases = map[string]bool{
	"api":        true,
	"admin":      true,
	"health":     true,
	"healthz":    true,
	"readyz":     true,
	"metrics":    true,
	"static":     true,
	"assets":     true,
	"url":        true,
	"qr":         true,
	"login":      true,
	"logout":     true,
	"robots":     true,
	"sitemap":    true,
	"favicon":    true,
	"well-known": true,
}

// Source produces candidate short codes. Candidates are not guaranteed unique.
type Source interface {
	Generate() (string, error)
}

// Generator draws fixed-length codes from a crypto-strength random source.
type Generator struct {
	length int
}

// NewGenerator returns a Generator producing codes of the given length.
func NewGenerator(length int) (*Generator, error) {
	if length == 0 {
		length = DefaultLength
	}
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("short code length must be between %d and %d, got %d", MinLength, MaxLength, length)
	}
	return &Generator{length: length}, nil
}

// Generate returns a new random code.
func (g *Generator) Generate() (string, error) {
	b := make([]byte, g.length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidateAlias checks a caller-supplied custom code.
func ValidateAlias(code string) error {
	if !aliasPattern.MatchString(code) {
		return model.ErrInvalidAlias.WithFields(model.FieldError{
			Field:   "customCode",
			Message: "customCode must be 3-20 characters of letters, digits, '-' or '_'",
		})
	}
	if ReservedAliases[strings.ToLower(code)] {
		return model.ErrInvalidAlias.WithFields(model.FieldError{
			Field:   "customCode",
			Message: "customCode is reserved",
		})
	}
	return nil
}

// IsValidCode reports whether code could name a link, generated or custom.
func IsValidCode(code string) bool {
	return aliasPattern.MatchString(code)
}
