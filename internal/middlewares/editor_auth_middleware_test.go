package middlewares

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEditorSecret = "test-editor-secret"

func newEditorTestApp(secret string) *fiber.App {
	app := fiber.New()

	workspaces := app.Group("/workspaces/:workspaceID")
	workspaces.Use(EditorAuthMiddleware(secret))
	workspaces.Get("/connections", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserID(c)})
	})

	return app
}

func signEditorToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

func TestEditorAuthMiddleware(t *testing.T) {
	app := newEditorTestApp(testEditorSecret)

	validClaims := jwt.MapClaims{
		"sub":        "user-1",
		"workspaces": []any{"ws-1", "ws-2"},
		"exp":        time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
	}{
		{
			name:          "valid token covering workspace",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS256, testEditorSecret, validClaims),
			wantStatus:    fiber.StatusOK,
		},
		{
			name:          "missing header",
			authorization: "",
			wantStatus:    fiber.StatusUnauthorized,
		},
		{
			name:          "not a bearer token",
			authorization: "Basic dXNlcjpwYXNz",
			wantStatus:    fiber.StatusUnauthorized,
		},
		{
			name:          "wrong secret",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS256, "other-secret", validClaims),
			wantStatus:    fiber.StatusUnauthorized,
		},
		{
			name:          "wrong signing algorithm",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS512, testEditorSecret, validClaims),
			wantStatus:    fiber.StatusUnauthorized,
		},
		{
			name: "expired token",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS256, testEditorSecret, jwt.MapClaims{
				"sub":        "user-1",
				"workspaces": []any{"ws-1"},
				"exp":        time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: fiber.StatusUnauthorized,
		},
		{
			name: "token without workspace claim",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS256, testEditorSecret, jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: fiber.StatusForbidden,
		},
		{
			name: "token for another workspace",
			authorization: "Bearer " + signEditorToken(t, jwt.SigningMethodHS256, testEditorSecret, jwt.MapClaims{
				"sub":        "user-1",
				"workspaces": []any{"ws-9"},
				"exp":        time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: fiber.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/workspaces/ws-1/connections", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestEditorAuthMiddlewarePropagatesUserID(t *testing.T) {
	app := newEditorTestApp(testEditorSecret)

	token := signEditorToken(t, jwt.SigningMethodHS256, testEditorSecret, jwt.MapClaims{
		"sub":        "user-42",
		"workspaces": []any{"ws-1"},
		"exp":        time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/workspaces/ws-1/connections", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "user-42")
}
