// Package services provides technical concerns used by the call center: tokens and distributed locks
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const tokenTypeAccess = "access"

// TokenService issues and validates the JWTs identifying the acting user
type TokenService interface {
	GenerateAccessToken(userID uint) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	UserID    uint      `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService with an HMAC secret
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	signingMethod  jwt.SigningMethod
	secretKey      []byte
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if accessTokenTTL <= 0 {
		return nil, fmt.Errorf("access token TTL must be positive")
	}

	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		signingMethod:  jwt.SigningMethodHS256,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
	}, nil
}

// GenerateAccessToken signs an access token for a user
func (s *TokenServiceImpl) GenerateAccessToken(userID uint) (string, error) {
	now := utils.UTCNow()

	claims := jwt.MapClaims{
		"user_id":    userID,
		"token_type": tokenTypeAccess,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(s.accessTokenTTL).Unix(),
		"iss":        s.issuer,
		"aud":        s.audience,
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT token and returns claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{s.signingMethod.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, ErrTokenInvalid
	}

	tokenType, ok := claims["token_type"].(string)
	if !ok || tokenType != tokenTypeAccess {
		return nil, ErrTokenInvalid
	}

	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		UserID:    uint(userID),
		TokenType: tokenType,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0),
		ExpiresAt: time.Unix(int64(expiresAt), 0),
	}, nil
}
