package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatrelay/relay/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid authentication token")

// Identity is who a request acts as: the user and the organization whose
// quota the request consumes.
type Identity struct {
	UserID         string
	OrganizationID string
}

// AuthService verifies bearer credentials. Tokens carrying the API key
// prefix go through the key store; everything else is treated as a
// dashboard-issued HS256 JWT.
type AuthService struct {
	apiKeys   *APIKeyService
	jwtSecret []byte
}

func NewAuthService(apiKeys *APIKeyService, jwtSecret string) *AuthService {
	return &AuthService{
		apiKeys:   apiKeys,
		jwtSecret: []byte(jwtSecret),
	}
}

// VerifyBearer resolves a bearer token to an identity and, for API keys,
// the key record itself (nil for JWT callers).
func (s *AuthService) VerifyBearer(ctx context.Context, token string) (Identity, *models.APIKey, error) {
	if strings.HasPrefix(token, apiKeyPrefix) {
		apiKey, err := s.apiKeys.Validate(ctx, token)
		if err != nil {
			return Identity{}, nil, err
		}

		go s.apiKeys.UpdateLastUsed(apiKey.ID)

		return Identity{
			UserID:         apiKey.CreatedBy,
			OrganizationID: apiKey.OrganizationID.String(),
		}, apiKey, nil
	}

	identity, err := s.verifyJWT(token)
	return identity, nil, err
}

func (s *AuthService) verifyJWT(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return Identity{}, ErrInvalidToken
	}

	organizationID, _ := claims["org"].(string)

	return Identity{
		UserID:         userID,
		OrganizationID: organizationID,
	}, nil
}
