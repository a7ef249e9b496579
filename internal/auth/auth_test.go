package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-orders/internal/auth"
)

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.FromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("guest"))
			return
		}
		_, _ = w.Write([]byte(identity.UserID + "|" + identity.Role))
	})
}

func TestVerifier_Authenticate(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	valid, err := verifier.Sign(auth.Identity{UserID: "user-1", Email: "asha@example.com", Role: "customer"}, time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Sign(auth.Identity{UserID: "user-1"}, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewVerifier("other-secret").Sign(auth.Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "guest", wantStatus: http.StatusOK, wantBody: "guest"},
		{name: "valid_token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "user-1|customer"},
		{name: "expired_token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong_secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "not_bearer", header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders/ORD-2025-000001", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			verifier.Authenticate(identityEcho()).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			} else {
				assert.Contains(t, rr.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	admin, err := verifier.Sign(auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	customer, err := verifier.Sign(auth.Identity{UserID: "user-1", Role: "customer"}, time.Hour)
	require.NoError(t, err)

	handler := verifier.Authenticate(auth.RequireAdmin(identityEcho()))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "admin", token: admin, wantStatus: http.StatusOK},
		{name: "customer", token: customer, wantStatus: http.StatusForbidden},
		{name: "guest", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ORD-2025-000001/status", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
