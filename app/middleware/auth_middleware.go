// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// Authenticate validates the bearer token and stores the acting user in locals.
// Role checks are left to the surrounding application.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		// Store user information in context for downstream handlers
		c.Locals("user_id", claims.UserID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		return c.Next()
	}
}

// RequestID makes sure every request carries an X-Request-ID, generating one when absent
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request().Header.Set("X-Request-ID", requestID)
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// GetUserIDFromContext extracts the acting user ID from the request context
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok && userID != 0
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals("token_claims").(*services.TokenClaims)
	return claims, ok
}
