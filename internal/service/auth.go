package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/noesis-ai/noesis/internal/domain"
)

const apiKeyPrefix = "nss_"

type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// AuthService issues and validates bearer API keys. Tokens are opaque
// nss_-prefixed strings; only their SHA-256 hash is stored.
type AuthService struct {
	keyRepo APIKeyRepositoryInterface
	uuidGen UUIDGenerator
}

func NewAuthService(keyRepo APIKeyRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		keyRepo: keyRepo,
		uuidGen: uuidGen,
	}
}

// CreateAPIKey mints a new key and returns the plaintext token exactly once.
func (s *AuthService) CreateAPIKey(ctx context.Context, orgID, name string, role domain.Role, service bool) (string, *domain.APIKey, error) {
	if orgID == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}
	if name == "" {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !role.Valid() {
		return "", nil, domain.NewDomainError(domain.ErrCodeValidation, "unknown role")
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		OrgID:     orgID,
		Name:      name,
		KeyHash:   hashToken(token),
		Role:      role,
		Service:   service,
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", nil, err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", nil, err
	}

	return token, key, nil
}

// CreateAPIKeyWithToken stores a key whose plaintext token was supplied by
// the operator, used when bootstrapping an installation.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, orgID, name, token string, role domain.Role) error {
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API token format")
	}

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		OrgID:     orgID,
		Name:      name,
		KeyHash:   hashToken(token),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}
	return s.keyRepo.Create(ctx, key)
}

// GetAPIKeyByHash looks up a key by its plaintext token.
func (s *AuthService) GetAPIKeyByHash(ctx context.Context, token string) (*domain.APIKey, error) {
	return s.keyRepo.GetByHash(ctx, hashToken(token))
}

// Authenticate resolves a bearer token to its principal.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}

	if key.IsRevoked() {
		return nil, domain.ErrAPIKeyRevoked
	}

	return &domain.Principal{
		KeyID:   key.ID,
		OrgID:   key.OrgID,
		Name:    key.Name,
		Role:    key.Role,
		Service: key.Service,
	}, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}
	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, orgID string) ([]*domain.APIKey, error) {
	if orgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}
	return s.keyRepo.ListByOrg(ctx, orgID)
}

// RequireRole rejects principals below the minimum role for an operation.
func RequireRole(p *domain.Principal, min domain.Role) error {
	if p == nil {
		return domain.ErrInvalidAPIKey
	}
	if !p.Role.AtLeast(min) {
		return domain.ErrInsufficientRole
	}
	return nil
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
