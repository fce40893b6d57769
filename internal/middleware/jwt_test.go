package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "ws-auth-test-secret"

// newWSAuthRouter wires RequireExaminerWSAuth against an AuthService whose
// Redis is unreachable: every session lookup fails fast, which must read as
// an invalidated session, never an open door.
func newWSAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: testJWTSecret, JWTExpiry: time.Hour}
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	authService := service.NewAuthService(cfg, rdb)

	router := gin.New()
	router.GET("/stream", RequireExaminerWSAuth(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func signTestToken(t *testing.T, secret string, examinerID int) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "session-jti",
			Subject:   strconv.Itoa(examinerID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		ExaminerID: examinerID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestWSAuthRequiresToken(t *testing.T) {
	router := newWSAuthRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_REQUIRED")
}

func TestWSAuthRejectsBadSignature(t *testing.T) {
	router := newWSAuthRouter(t)
	token := signTestToken(t, "some-other-secret", 42)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_INVALID")
}

func TestWSAuthEnforcesSingleDeviceSession(t *testing.T) {
	router := newWSAuthRouter(t)
	token := signTestToken(t, testJWTSecret, 42)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil))

	// A validly signed token is not enough: the JTI must still match the
	// examiner's active session before the stream opens.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_INVALIDATED")
}
