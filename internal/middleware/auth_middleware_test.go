package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/pkg/jwt"
)

func setupAuthTest() (*gin.Engine, *jwt.Service) {
	gin.SetMode(gin.TestMode)
	jwtService := jwt.NewService("test-secret")

	router := gin.New()
	router.GET("/admin",
		RequireAuth(jwtService),
		RequireRole("admin"),
		func(c *gin.Context) {
			userCtx, _ := GetUserContext(c)
			c.JSON(http.StatusOK, gin.H{"user_id": userCtx.UserID})
		})

	return router, jwtService
}

func mintToken(t *testing.T, secret, userID, role string) string {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwt.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func get(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	router, _ := setupAuthTest()
	w := get(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	router, _ := setupAuthTest()
	w := get(router, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	router, _ := setupAuthTest()
	w := get(router, "Bearer "+mintToken(t, "wrong-secret", "user-1", "admin"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_WrongRole(t *testing.T) {
	router, _ := setupAuthTest()
	w := get(router, "Bearer "+mintToken(t, "test-secret", "user-1", "customer"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole_AdminAllowed(t *testing.T) {
	router, _ := setupAuthTest()
	w := get(router, "Bearer "+mintToken(t, "test-secret", "user-7", "admin"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-7")
}
