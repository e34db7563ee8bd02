package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/grandstand-picks/grandstand/models"
)

const testSecret = "six-love-six-love"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func playerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": 5,
		"role":    "player",
		"name":    "Marta",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
}

func TestAuthenticate_PassesClaimsDownstream(t *testing.T) {
	var gotUserID int
	var gotRole models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotUserID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotRole, err = GetUserRoleFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/tournaments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, playerClaims()))
	rec := httptest.NewRecorder()

	Authenticate(testSecret)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 5, gotUserID)
	require.Equal(t, models.RolePlayer, gotRole)
}

func TestAuthenticate_Rejections(t *testing.T) {
	expired := playerClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, playerClaims()).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not a bearer scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "bearer without a token", header: "Bearer"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "wrong signing key", header: "Bearer " + signedToken(t, "some-other-secret", playerClaims())},
		{name: "expired token", header: "Bearer " + signedToken(t, testSecret, expired)},
		{name: "unsigned token", header: "Bearer " + unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("the request must not reach the handler")
			})
			req := httptest.NewRequest(http.MethodGet, "/tournaments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(testSecret)(next).ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		allowed  []models.UserRole
		wantCode int
	}{
		{
			name:     "admin on an admin route",
			claims:   jwt.MapClaims{"role": "admin"},
			allowed:  []models.UserRole{models.RoleAdmin},
			wantCode: http.StatusNoContent,
		},
		{
			name:     "player refused an admin route",
			claims:   jwt.MapClaims{"role": "player"},
			allowed:  []models.UserRole{models.RoleAdmin},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "any listed role passes",
			claims:   jwt.MapClaims{"role": "player"},
			allowed:  []models.UserRole{models.RoleAdmin, models.RolePlayer},
			wantCode: http.StatusNoContent,
		},
		{
			name:     "unknown role value",
			claims:   jwt.MapClaims{"role": "umpire"},
			allowed:  []models.UserRole{models.RoleAdmin},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no claims in context",
			claims:   nil,
			allowed:  []models.UserRole{models.RoleAdmin},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/tournaments/draw", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), userContextKey, tt.claims))
			}
			rec := httptest.NewRecorder()

			RequireRole(tt.allowed...)(next).ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAuthenticateThenRequireRole(t *testing.T) {
	handler := Authenticate(testSecret)(RequireRole(models.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

	adminClaims := playerClaims()
	adminClaims["role"] = "admin"

	req := httptest.NewRequest(http.MethodPost, "/tournaments/draw", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, adminClaims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, "an admin token reaches the handler")

	req = httptest.NewRequest(http.MethodPost, "/tournaments/draw", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, playerClaims()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code, "a player token is stopped at the role gate")
}

func TestGetUserIDFromContext(t *testing.T) {
	ctxWith := func(claims jwt.MapClaims) context.Context {
		return context.WithValue(context.Background(), userContextKey, claims)
	}

	tests := []struct {
		name    string
		ctx     context.Context
		want    int
		wantErr bool
	}{
		{name: "numeric claim", ctx: ctxWith(jwt.MapClaims{"user_id": float64(5)}), want: 5},
		{name: "string claim", ctx: ctxWith(jwt.MapClaims{"user_id": "12"}), want: 12},
		{name: "fractional claim", ctx: ctxWith(jwt.MapClaims{"user_id": 5.5}), wantErr: true},
		{name: "zero claim", ctx: ctxWith(jwt.MapClaims{"user_id": float64(0)}), wantErr: true},
		{name: "missing claim", ctx: ctxWith(jwt.MapClaims{}), wantErr: true},
		{name: "no claims at all", ctx: context.Background(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetUserIDFromContext(tt.ctx)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
