package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"clothify/internal/database"
	"clothify/internal/handlers"
	"clothify/internal/middleware"
	"clothify/internal/models"
	"clothify/internal/repositories"
	"clothify/internal/services"
	"clothify/pkg/captcha"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

var codePattern = regexp.MustCompile(`[0-9]{6}`)

// captureMailer records sent emails instead of delivering them.
type captureMailer struct {
	mu       sync.Mutex
	lastTo   string
	lastBody string
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTo = to
	m.lastBody = body
	return nil
}

// lastCode extracts the six-digit code from the most recent email.
func (m *captureMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return codePattern.FindString(m.lastBody)
}

// setupApp wires the full Fiber app against an in-memory SQLite database,
// mirroring the production wiring in main.go.
func setupApp(t *testing.T, recaptcha, turnstile *captcha.Verifier) (*fiber.App, *captureMailer) {
	t.Helper()

	// A named shared in-memory database keeps each test isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, database.Migrate(db))

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	otpStore := repositories.NewGORMOTPStore(db)

	mail := &captureMailer{}

	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, nil) // nil RabbitMQ client
	otpService := services.NewOTPService(otpStore, mail, 5*time.Minute)
	authService := services.NewAuthService(userRepo, otpService, "test_jwt_secret")
	accountService := services.NewAccountService(userRepo, mail)

	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	otpHandler := handlers.NewOTPHandler(otpService)
	captchaHandler := handlers.NewCaptchaHandler(recaptcha, turnstile)
	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(accountService)

	app := fiber.New()
	adminGate := middleware.AdminRequired(testAdminToken)
	authGate := middleware.AuthRequired(authService)

	api := app.Group("/api")
	productHandler.RegisterRoutes(api, adminGate)
	orderHandler.RegisterRoutes(api, adminGate)
	otpHandler.RegisterRoutes(api)
	captchaHandler.RegisterRoutes(api)
	authHandler.RegisterRoutes(api, authGate)
	accountHandler.RegisterRoutes(api, adminGate)

	return app, mail
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	resp.Body.Close()
	return resp, decoded
}

func adminHeaders() map[string]string {
	return map[string]string{"x-admin-token": testAdminToken}
}

// TestMain runs setup for all tests in this package.
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestOTPIssueAndVerifyFlow(t *testing.T) {
	app, mail := setupApp(t, nil, nil)

	// Missing email is a client error
	resp, body := postJSON(t, app, "/api/send", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email is required", body["error"])

	// Issue a code
	resp, body = postJSON(t, app, "/api/send", map[string]string{"email": "a@b.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP sent successfully", body["message"])
	assert.Equal(t, "a@b.com", mail.lastTo)
	code := mail.lastCode()
	assert.Len(t, code, 6)

	// Wrong code: invalid, and the record survives for retry
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp, body = postJSON(t, app, "/api/verify", map[string]string{"email": "a@b.com", "code": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid code", body["error"])

	// Correct code verifies
	resp, body = postJSON(t, app, "/api/verify", map[string]string{"email": "a@b.com", "code": code}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP verified successfully", body["message"])

	// The same code cannot verify twice
	resp, body = postJSON(t, app, "/api/verify", map[string]string{"email": "a@b.com", "code": code}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP expired or not found", body["error"])
}

func TestOTPVerifyWithoutIssuance(t *testing.T) {
	app, _ := setupApp(t, nil, nil)

	// No live record: "expired or not found", never "invalid code"
	resp, body := postJSON(t, app, "/api/verify", map[string]string{"email": "ghost@b.com", "code": "123456"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP expired or not found", body["error"])
}

func TestOTPReissueInvalidatesPreviousCode(t *testing.T) {
	app, mail := setupApp(t, nil, nil)

	resp, _ := postJSON(t, app, "/api/send", map[string]string{"email": "a@b.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	firstCode := mail.lastCode()

	resp, _ = postJSON(t, app, "/api/send", map[string]string{"email": "a@b.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	secondCode := mail.lastCode()

	if firstCode != secondCode {
		resp, body := postJSON(t, app, "/api/verify", map[string]string{"email": "a@b.com", "code": firstCode}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid code", body["error"])
	}

	// The latest code always verifies
	resp, body := postJSON(t, app, "/api/verify", map[string]string{"email": "a@b.com", "code": secondCode}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP verified successfully", body["message"])
}

func TestProductMutationsRequireAdminToken(t *testing.T) {
	app, _ := setupApp(t, nil, nil)

	newProduct := map[string]interface{}{
		"title": "Linen Shirt",
		"price": 45.0,
		"stock": 10,
	}

	// Missing token
	resp, body := postJSON(t, app, "/api/products", newProduct, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])

	// Wrong token
	resp, body = postJSON(t, app, "/api/products", newProduct, map[string]string{"x-admin-token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])

	// DELETE without token is rejected regardless of payload
	req := httptest.NewRequest(http.MethodDelete, "/api/products/123", nil)
	resp2, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	resp2.Body.Close()

	// Correct token creates the product
	resp, body = postJSON(t, app, "/api/products", newProduct, adminHeaders())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	productID, _ := body["id"].(string)
	assert.NotEmpty(t, productID)

	// Reads are public
	req = httptest.NewRequest(http.MethodGet, "/api/products/"+productID, nil)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()

	// Update with token
	updated := map[string]interface{}{
		"title": "Linen Shirt v2",
		"price": 48.0,
		"stock": 8,
	}
	jsonBody, _ := json.Marshal(updated)
	req = httptest.NewRequest(http.MethodPut, "/api/products/"+productID, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-admin-token", testAdminToken)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()

	// Delete with token
	req = httptest.NewRequest(http.MethodDelete, "/api/products/"+productID, nil)
	req.Header.Set("x-admin-token", testAdminToken)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()

	// Gone afterwards
	req = httptest.NewRequest(http.MethodGet, "/api/products/"+productID, nil)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	resp2.Body.Close()
}

func TestOrderCheckoutAndBackOfficeReads(t *testing.T) {
	app, _ := setupApp(t, nil, nil)

	// Seed a product through the admin API
	resp, body := postJSON(t, app, "/api/products", map[string]interface{}{
		"title": "Denim Jacket",
		"price": 89.0,
		"stock": 5,
	}, adminHeaders())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	productID := body["id"].(string)

	// Checkout is public
	resp, body = postJSON(t, app, "/api/orders", map[string]interface{}{
		"customer_name":  "Ada Lovelace",
		"customer_email": "ada@example.com",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 2},
		},
		"total": 1.0, // ignored: total is computed server-side
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	orderID, _ := body["id"].(string)
	assert.NotEmpty(t, orderID)

	// Order reads are back office only
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	resp2, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	resp2.Body.Close()

	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID, nil)
	req.Header.Set("x-admin-token", testAdminToken)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	var order models.Order
	assert.NoError(t, json.NewDecoder(resp2.Body).Decode(&order))
	resp2.Body.Close()
	assert.InDelta(t, 178.0, order.TotalAmount, 0.001)
	assert.Equal(t, "ada@example.com", order.CustomerEmail)

	// Ordering more than the remaining stock fails
	resp, body = postJSON(t, app, "/api/orders", map[string]interface{}{
		"customer_name":  "Ada Lovelace",
		"customer_email": "ada@example.com",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 50},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "insufficient stock")
}

func TestCaptchaEndpoints(t *testing.T) {
	verifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "score": 0.9}`))
	}))
	defer verifyServer.Close()

	recaptcha := captcha.NewVerifier(verifyServer.URL, "secret", 0.5)
	turnstile := captcha.NewVerifier(verifyServer.URL, "secret", 0)
	app, _ := setupApp(t, recaptcha, turnstile)

	// Missing token
	resp, body := postJSON(t, app, "/api/captcha", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Token is required", body["error"])

	// Accepted with score
	resp, body = postJSON(t, app, "/api/captcha", map[string]string{"token": "tok"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 0.9, body["score"])

	// Turnstile variant carries no score
	resp, body = postJSON(t, app, "/api/turnstile", map[string]string{"token": "tok"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "score")
}

func TestCaptchaTransportFailureDenies(t *testing.T) {
	// Closed server: the verification endpoint is unreachable
	deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadServer.Close()

	v := captcha.NewVerifier(deadServer.URL, "secret", 0.5)
	app, _ := setupApp(t, v, v)

	resp, body := postJSON(t, app, "/api/captcha", map[string]string{"token": "tok"}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, false, body["success"], "a transport error must deny, never approve")
}

func TestCaptchaRejection(t *testing.T) {
	verifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer verifyServer.Close()

	v := captcha.NewVerifier(verifyServer.URL, "secret", 0)
	app, _ := setupApp(t, v, v)

	resp, body := postJSON(t, app, "/api/captcha", map[string]string{"token": "bad"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t, nil, nil)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp, body := postJSON(t, app, "/api/auth/register", userToRegister, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])

	// Duplicate registration conflicts
	resp, _ = postJSON(t, app, "/api/auth/register", userToRegister, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "testuser",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, body = postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "testuser",
		"password": "wrongpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication failed", body["error"])
}

func TestAuthenticatedProfileRoute(t *testing.T) {
	app, _ := setupApp(t, nil, nil)

	resp, _ := postJSON(t, app, "/api/auth/register", map[string]string{
		"username": "profileuser",
		"email":    "profile@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// No token
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	resp2, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	resp2.Body.Close()

	// Garbage token
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	resp2.Body.Close()

	resp, body := postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "profileuser",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	var profile models.User
	assert.NoError(t, json.NewDecoder(resp2.Body).Decode(&profile))
	resp2.Body.Close()
	assert.Equal(t, "profileuser", profile.Username)
	assert.Equal(t, "profile@example.com", profile.Email)
}

func TestPasswordResetFlow(t *testing.T) {
	app, mail := setupApp(t, nil, nil)

	resp, _ := postJSON(t, app, "/api/auth/register", map[string]string{
		"username": "resetuser",
		"email":    "reset@example.com",
		"password": "oldpassword",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = postJSON(t, app, "/api/send", map[string]string{"email": "reset@example.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	code := mail.lastCode()

	resp, body := postJSON(t, app, "/api/password/reset", map[string]string{
		"email":        "reset@example.com",
		"code":         code,
		"new_password": "newpassword",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Password updated successfully", body["message"])

	// The consumed code cannot be replayed
	resp, body = postJSON(t, app, "/api/password/reset", map[string]string{
		"email":        "reset@example.com",
		"code":         code,
		"new_password": "anotherpassword",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP expired or not found", body["error"])

	// Old password no longer works, new one does
	resp, _ = postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "resetuser",
		"password": "oldpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, app, "/api/auth/login", map[string]string{
		"username": "resetuser",
		"password": "newpassword",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBackOfficeAccountManagement(t *testing.T) {
	app, mail := setupApp(t, nil, nil)

	// Invitations require the admin token
	resp, _ := postJSON(t, app, "/api/admin/invitations", map[string]string{"email": "new@clothify.dev"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := postJSON(t, app, "/api/admin/invitations", map[string]string{"email": "new@clothify.dev"}, adminHeaders())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "new@clothify.dev", mail.lastTo)

	// Member deletion
	resp, body = postJSON(t, app, "/api/auth/register", map[string]string{
		"username": "member",
		"email":    "member@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	memberID := user["id"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/members/"+memberID, nil)
	resp2, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	resp2.Body.Close()

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/members/"+memberID, nil)
	req.Header.Set("x-admin-token", testAdminToken)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/members/"+memberID, nil)
	req.Header.Set("x-admin-token", testAdminToken)
	resp2, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	resp2.Body.Close()
}
