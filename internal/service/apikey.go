package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/repository"
	"github.com/chatrelay/relay/internal/storage"
	"github.com/google/uuid"
)

const (
	apiKeyPrefix   = "tx_"
	shortKeyLength = 11 // prefix + first 8 chars
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrRevokedAPIKey = errors.New("API key has been revoked")
)

type APIKeyService struct {
	repository *repository.APIKeyRepository
	redis      *storage.RedisClient
}

func NewAPIKeyService(repo *repository.APIKeyRepository, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{
		repository: repo,
		redis:      redis,
	}
}

// Create generates a new API key for an organization. The plain key is
// returned exactly once; only its SHA-256 hash is stored.
func (s *APIKeyService) Create(ctx context.Context, organizationID uuid.UUID, createdBy, name, permission string) (string, *models.APIKey, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	key := apiKeyPrefix + hex.EncodeToString(keyBytes)

	if permission == "" {
		permission = "all"
	}

	apiKey := models.APIKey{
		OrganizationID: organizationID,
		KeyHash:        hashKey(key),
		ShortKey:       key[:shortKeyLength],
		Name:           name,
		CreatedBy:      createdBy,
		Permission:     permission,
		IsActive:       true,
	}

	if err := s.repository.Create(ctx, &apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}

	return key, &apiKey, nil
}

// Validate resolves a bearer key to its record. Revoked keys are reported
// distinctly so the caller can tell the user to rotate.
func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	if !strings.HasPrefix(key, apiKeyPrefix) {
		return nil, ErrInvalidAPIKey
	}

	keyHash := hashKey(key)

	cacheKey := fmt.Sprintf("apikey:cache:%s", keyHash)
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		var apiKey models.APIKey
		if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
			if !apiKey.IsActive {
				return nil, ErrRevokedAPIKey
			}
			return &apiKey, nil
		}
	}

	apiKey, err := s.repository.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	if apiKey == nil {
		return nil, ErrInvalidAPIKey
	}

	if !apiKey.IsActive {
		return nil, ErrRevokedAPIKey
	}

	if payload, err := json.Marshal(apiKey); err == nil {
		s.redis.Set(ctx, cacheKey, payload, 5*time.Minute)
	}

	return apiKey, nil
}

func (s *APIKeyService) List(ctx context.Context, organizationID string) ([]models.APIKey, error) {
	return s.repository.ListByOrganization(ctx, organizationID)
}

// Revoke deactivates a key and drops it from the validation cache.
func (s *APIKeyService) Revoke(ctx context.Context, id, organizationID string) error {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if apiKey == nil || apiKey.OrganizationID.String() != organizationID {
		return ErrInvalidAPIKey
	}

	if err := s.repository.Revoke(ctx, id, organizationID); err != nil {
		return err
	}

	s.redis.Del(ctx, fmt.Sprintf("apikey:cache:%s", apiKey.KeyHash))
	return nil
}

// UpdateLastUsed is fired off the request path; it uses a background
// context so an ending request does not cancel the write.
func (s *APIKeyService) UpdateLastUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.repository.UpdateLastUsed(ctx, id)
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
