package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadeo/cadeo-dashboard/config"
)

func TestCustomClaimsHasScope(t *testing.T) {
	tests := []struct {
		name   string
		scope  string
		wanted string
		want   bool
	}{
		{"single scope", ScopeReadDashboard, ScopeReadDashboard, true},
		{"one of several", "openid read:dashboard refresh:dashboard", ScopeRefreshDashboard, true},
		{"reader cannot refresh", ScopeReadDashboard, ScopeRefreshDashboard, false},
		{"no scopes", "", ScopeReadDashboard, false},
		{"prefix is not a scope", ScopeReadDashboard, "read", false},
		{"extra spaces", "  read:dashboard   refresh:dashboard ", ScopeRefreshDashboard, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := CustomClaims{Scope: tt.scope}
			assert.Equal(t, tt.want, claims.HasScope(tt.wanted))
		})
	}
}

func validatedClaims(subject, scope string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://cadeo-test.eu.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &CustomClaims{Scope: scope},
	}
}

func TestContextAccessors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("authenticated context", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", "auth0|analyst")
		c.Set("validated_claims", validatedClaims("auth0|analyst", ScopeReadDashboard))

		userID, err := GetUserID(c)
		require.NoError(t, err)
		assert.Equal(t, "auth0|analyst", userID)

		claims, err := GetClaims(c)
		require.NoError(t, err)
		assert.Equal(t, "auth0|analyst", claims.RegisteredClaims.Subject)
	})

	t.Run("empty context", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetUserID(c)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "MISSING_USER_ID", authErr.Code)

		_, err = GetClaims(c)
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "MISSING_CLAIMS", authErr.Code)
	})

	t.Run("wrong types", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 42)
		c.Set("validated_claims", "not claims")

		_, err := GetUserID(c)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "INVALID_USER_ID", authErr.Code)

		_, err = GetClaims(c)
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "INVALID_CLAIMS", authErr.Code)
		assert.Equal(t, "Claims are not in the expected format", authErr.Error())
	})
}

func TestRequireScope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		claims     *validator.ValidatedClaims
		required   string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "reader reads",
			claims:     validatedClaims("auth0|reader", ScopeReadDashboard),
			required:   ScopeReadDashboard,
			wantStatus: http.StatusOK,
		},
		{
			name:       "reader refreshes",
			claims:     validatedClaims("auth0|reader", ScopeReadDashboard),
			required:   ScopeRefreshDashboard,
			wantStatus: http.StatusForbidden,
			wantCode:   "INSUFFICIENT_SCOPE",
		},
		{
			name:       "no token claims",
			required:   ScopeReadDashboard,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MISSING_CLAIMS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/dashboard", func(c *gin.Context) {
				if tt.claims != nil {
					c.Set("validated_claims", tt.claims)
				}
				c.Next()
			}, RequireScope(tt.required), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"success": true})
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode != "" {
				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.False(t, response["success"].(bool))
				assert.Equal(t, tt.wantCode, response["error"].(map[string]interface{})["code"])
			}
		})
	}
}

func TestEnsureValidTokenRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth0Domain:   "cadeo-test.eu.auth0.com",
		Auth0Audience: "https://api.cadeo.test",
	}
	authMiddleware, err := EnsureValidToken(cfg)
	require.NoError(t, err)

	reached := false
	router := gin.New()
	router.GET("/protected", authMiddleware, func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "Bearer not-a-jwt", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	}
	assert.False(t, reached, "Handler should not run without a valid token")
}
