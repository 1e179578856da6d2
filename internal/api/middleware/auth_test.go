package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/noesis-ai/noesis/internal/domain"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

const testToken = "nss_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAPIKeyAuth_Success(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockAuth.On("Authenticate", mock.Anything, testToken).Return(&domain.Principal{
		KeyID: "key-1",
		OrgID: "org-789",
		Role:  domain.RoleReader,
	}, nil)

	var captured *domain.Principal
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrapped := APIKeyAuth(mockAuth)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "org-789", captured.OrgID)
	mockAuth.AssertExpectations(t)
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	mockAuth := new(MockAuthenticator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrapped := APIKeyAuth(mockAuth)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAPIKeyAuth_InvalidFormat(t *testing.T) {
	mockAuth := new(MockAuthenticator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrapped := APIKeyAuth(mockAuth)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestAPIKeyAuth_AuthenticationFails(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	mockAuth.On("Authenticate", mock.Anything, testToken).Return(nil, errors.New("invalid key"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrapped := APIKeyAuth(mockAuth)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
	mockAuth.AssertExpectations(t)
}

func TestScopeContext_DerivesScopeFromTokenAndHeaders(t *testing.T) {
	principal := &domain.Principal{KeyID: "key-1", OrgID: "org-1", Role: domain.RoleReader}

	var captured domain.Scope
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetScope(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrapped := ScopeContext(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Product-ID", "prod-1")
	req.Header.Set("X-Client-ID", "client-1")
	req = req.WithContext(context.WithValue(req.Context(), PrincipalKey, principal))
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.Scope{OrgID: "org-1", ProductID: "prod-1", ClientID: "client-1"}, captured)
}

func TestScopeContext_OrgAlwaysComesFromToken(t *testing.T) {
	principal := &domain.Principal{KeyID: "key-1", OrgID: "org-1", Role: domain.RoleReader}

	var captured domain.Scope
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetScope(r.Context())
	})

	wrapped := ScopeContext(handler)

	// A declared org header is ignored; only the token's org counts.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", "org-other")
	req = req.WithContext(context.WithValue(req.Context(), PrincipalKey, principal))
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, "org-1", captured.OrgID)
}

func TestScopeContext_RejectsInvalidScope(t *testing.T) {
	principal := &domain.Principal{KeyID: "key-1", OrgID: "org-1", Role: domain.RoleReader}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrapped := ScopeContext(handler)

	// Engagement without a client violates scope integrity.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Engagement-ID", "eng-1")
	req = req.WithContext(context.WithValue(req.Context(), PrincipalKey, principal))
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScopeContext_MissingPrincipal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrapped := ScopeContext(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetOrgID(t *testing.T) {
	ctx := context.WithValue(context.Background(), PrincipalKey, &domain.Principal{OrgID: "org-123"})
	assert.Equal(t, "org-123", GetOrgID(ctx))
	assert.Equal(t, "", GetOrgID(context.Background()))
}
