package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/testutil"
	"github.com/localnerve/jam-build-intakedb/internal/scope"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, auth *services.AuthService, roles ...string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler(testutil.NewLogger(t))})
	handlers := []fiber.Handler{VersionMiddleware(), Authenticate(auth)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		return c.JSON(fiber.Map{"user": actor.UserID, "role": actor.RoleName(), "version": c.Locals("apiVersion")})
	})
	app.Get("/who", handlers...)
	return app
}

func TestAuthenticate(t *testing.T) {
	auth := services.NewAuthService("secret", "intakedb")
	app := newApp(t, auth)

	resp, err := app.Test(httptest.NewRequest("GET", "/who", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := auth.IssueToken("l1", scope.RoleLearner, nil, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, CurrentAPIVersion, resp.Header.Get("X-Api-Version"))
}

func TestRequireRoles(t *testing.T) {
	auth := services.NewAuthService("secret", "intakedb")
	app := newApp(t, auth, scope.RoleAdmin, scope.RoleSuperadmin)

	cases := map[string]int{
		scope.RoleLearner:    fiber.StatusForbidden,
		scope.RoleAdmin:      fiber.StatusOK,
		scope.RoleSuperadmin: fiber.StatusOK,
	}
	for role, want := range cases {
		token, err := auth.IssueToken("user-"+role, role, []string{"u1"}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/who", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler(testutil.NewLogger(t))})
	app.Get("/v", VersionMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiVersion").(string))
	})

	req := httptest.NewRequest("GET", "/v", nil)
	req.Header.Set("X-Api-Version", "1.0")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0.0", resp.Header.Get("X-Api-Version"))

	req = httptest.NewRequest("GET", "/v", nil)
	req.Header.Set("X-Api-Version", "2.1.0")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
