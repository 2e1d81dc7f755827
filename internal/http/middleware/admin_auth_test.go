package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func signedAdminToken(t *testing.T, secret string, claims AdminClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(tenants ...string) AdminClaims {
	return AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Tenants: tenants,
	}
}

func serveAdmin(secret, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	AdminJWT(secret)(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestAdminJWTRejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	cases := map[string]struct {
		secret string
		auth   string
	}{
		"disabled":       {secret: "", auth: "Bearer " + signedAdminToken(t, "secret", validClaims())},
		"missing header": {secret: "secret"},
		"not bearer":     {secret: "secret", auth: "Basic abc"},
		"wrong secret":   {secret: "secret", auth: "Bearer " + signedAdminToken(t, "wrong", validClaims())},
		"expired":        {secret: "secret", auth: "Bearer " + signedAdminToken(t, "secret", expired)},
		"no expiry":      {secret: "secret", auth: "Bearer " + signedAdminToken(t, "secret", noExpiry)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serveAdmin(tc.secret, tc.auth).Code)
		})
	}
}

func TestAdminJWTAcceptsValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret", validClaims("t1")))
	rec := httptest.NewRecorder()

	var got AdminClaims
	AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		require.True(t, ok)
		got = claims
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", got.Subject)
	assert.Equal(t, []string{"t1"}, got.Tenants)
}

func TestTenantScope(t *testing.T) {
	r := chi.NewRouter()
	r.With(AdminJWT("secret"), TenantScope).Get("/admin/tenants/{tenantID}", okHandler)

	get := func(path string, claims AdminClaims) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret", claims))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/admin/tenants/abc", validClaims()))
	assert.Equal(t, http.StatusOK, get("/admin/tenants/abc", validClaims("ABC")))
	assert.Equal(t, http.StatusForbidden, get("/admin/tenants/abc", validClaims("other")))
}
