package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/crisanro/kipu-core/internal/interfaces/http"
	pkgjwt "github.com/crisanro/kipu-core/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserUID   = "00000000-0000-0000-0000-000000000001"
	testIssuer    = "kipu-core-test"
	testExpMin    = 60
)

// buildTestApp construye una aplicación Fiber mínima con el AuthMiddleware y
// un handler que devuelve el UID extraído del token.
func buildTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"uid": apphttp.GetUserUID(c), "email": apphttp.GetEmail(c)})
		},
	)
	return app
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserUID, "user@example.com", testIssuer, testExpMin)
	require.NoError(t, err, "debe generarse un token válido")
	return "Bearer " + tok
}

func TestAuthMiddleware_TokenValido(t *testing.T) {
	app := buildTestApp()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", token(t))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_SinHeader(t *testing.T) {
	app := buildTestApp()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_FormatoInvalido(t *testing.T) {
	app := buildTestApp()
	for _, header := range []string{"Basic abc", "Bearer", "Bearer  ", "solo-token"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestAuthMiddleware_FirmaIncorrecta(t *testing.T) {
	app := buildTestApp()
	tok, err := pkgjwt.Generate("otro-secret", testUserUID, "", testIssuer, testExpMin)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestN8NMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/topup",
		apphttp.N8NMiddleware("secreto-n8n"),
		func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) },
	)

	// Sin clave
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/admin/topup", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Clave equivocada
	req := httptest.NewRequest(http.MethodPost, "/admin/topup", nil)
	req.Header.Set("x-n8n-key", "incorrecta")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Clave correcta
	req = httptest.NewRequest(http.MethodPost, "/admin/topup", nil)
	req.Header.Set("x-n8n-key", "secreto-n8n")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
