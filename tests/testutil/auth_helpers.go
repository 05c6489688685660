package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"github.com/cadeo/cadeo-dashboard/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID string, issuer string, scopes []string) {
	claims := MockValidatedClaims(userID, issuer, scopes)
	c.Set("user_id", userID)
	c.Set("validated_claims", claims)
}

// MockAuth stands in for EnsureValidToken: every request is authenticated
// as userID with the given scopes
func MockAuth(userID string, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, userID, "https://test.auth0.com/", scopes)
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
