package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "ordertrack/internal/errors"
)

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator("test-secret", zap.NewNop())
}

func TestIssueAndVerify(t *testing.T) {
	a := newTestAuthenticator()

	token, err := a.Issue("user_1")
	require.NoError(t, err)

	userID, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewAuthenticator("other-secret", zap.NewNop()).Issue("user_1")
	require.NoError(t, err)

	_, err = newTestAuthenticator().Verify(token)

	_, ok := apperrors.IsUnauthorizedError(err)
	assert.True(t, ok)
}

func TestVerify_Expired(t *testing.T) {
	a := newTestAuthenticator()
	a.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := a.Issue("user_1")
	require.NoError(t, err)

	_, err = newTestAuthenticator().Verify(token)

	assert.Error(t, err)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user_1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestAuthenticator().Verify(token)

	assert.Error(t, err)
}

func TestVerify_MissingUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newTestAuthenticator().Verify(token)

	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthenticator()
	valid, err := a.Issue("user_1")
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized, wantMessage: "Token missing"},
		{name: "not_bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantMessage: "Invalid token"},
		{name: "garbage_token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantMessage: "Invalid token"},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user_1", seen)
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := UserIDFromContext(WithUserID(context.Background(), "user_9"))
	assert.True(t, ok)
	assert.Equal(t, "user_9", id)
}
