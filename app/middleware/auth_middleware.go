// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"

	"github.com/amirphl/lead-exchange/app/dto"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware guards the API with static keys shared with trusted callers
type AuthMiddleware struct {
	header string
	keys   [][]byte
	skip   map[string]struct{}
}

// NewAuthMiddleware creates an API key middleware. Paths in skip bypass the check.
func NewAuthMiddleware(header string, allowedKeys []string, skip ...string) *AuthMiddleware {
	if header == "" {
		header = "X-API-Key"
	}
	keys := make([][]byte, 0, len(allowedKeys))
	for _, k := range allowedKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return &AuthMiddleware{header: header, keys: keys, skip: skipped}
}

// Authenticate rejects requests without a known API key
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := m.skip[c.Path()]; ok {
			return c.Next()
		}

		apiKey := c.Get(m.header)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		if !m.valid(apiKey) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error: dto.ErrorDetail{
					Code: "INVALID_API_KEY",
				},
			})
		}

		return c.Next()
	}
}

func (m *AuthMiddleware) valid(apiKey string) bool {
	candidate := []byte(apiKey)
	for _, k := range m.keys {
		if subtle.ConstantTimeCompare(candidate, k) == 1 {
			return true
		}
	}
	return false
}
