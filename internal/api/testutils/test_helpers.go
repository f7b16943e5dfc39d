package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/savings-circles/internal/api"
	"github.com/rongwang/savings-circles/internal/config"
	"github.com/rongwang/savings-circles/internal/metrics"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/rongwang/savings-circles/internal/repository"
	"github.com/rongwang/savings-circles/internal/service"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestUserEmail    = "testuser@example.com"
	TestUserPassword = "testpassword"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	Metrics     *metrics.Metrics
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
}

// TestUser is a seeded user with a signed token
type TestUser struct {
	ID    string
	Name  string
	Email string
	JWT   string
}

// Option adjusts the configuration a test context is built from
type Option func(cfg *config.Config)

// WithAutoApproveInvites enables single-step invites
func WithAutoApproveInvites() Option {
	return func(cfg *config.Config) {
		cfg.Circle.AutoApproveInvites = true
	}
}

// SetupTestContext creates a new test context backed by an in-memory
// repository, with one seeded test user.
func SetupTestContext(t *testing.T, opts ...Option) *TestContext {
	t.Helper()

	cfg := config.LoadConfig()
	cfg.Auth.JWTSecret = "test-secret-key"
	cfg.Circle.DefaultAmountPerMember = 1000
	cfg.Circle.AutoApproveInvites = false
	for _, opt := range opts {
		opt(cfg)
	}

	repo := repository.NewMemoryRepository()
	m := metrics.New()

	svc := service.NewDefaultService(repo, service.Options{
		JWTSecret:              cfg.Auth.JWTSecret,
		TokenTTL:               cfg.Auth.TokenTTL,
		DefaultAmountPerMember: cfg.Circle.DefaultAmountPerMember,
		AutoApproveInvites:     cfg.Circle.AutoApproveInvites,
		Metrics:                m,
	})

	handler := api.NewHandler(svc, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.MetricsMiddleware(m), api.JWTSecretMiddleware(cfg.Auth.JWTSecret))
	handler.SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Metrics:    m,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
	}

	user := testCtx.CreateUser(t, "Test User", TestUserEmail, TestUserPassword)
	testCtx.TestUserID = user.ID
	testCtx.TestUserJWT = user.JWT

	return testCtx
}

// CreateUser stores a user and signs a token for it
func (tc *TestContext) CreateUser(t *testing.T, name, email, password string) TestUser {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
	}
	require.NoError(t, tc.Repository.CreateUser(context.Background(), user), "Failed to create test user")

	return TestUser{
		ID:    user.ID,
		Name:  name,
		Email: email,
		JWT:   SignToken(t, tc.JWTSecret, user.ID, time.Now().Add(24*time.Hour)),
	}
}

// SignToken generates a JWT for userID with the given expiry
func SignToken(t *testing.T, secret []byte, userID string, expires time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": expires.Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString(secret)
	require.NoError(t, err, "Failed to generate JWT token")
	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body into v
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
