package user

import (
	"bytes"
	"collaborative-text-editor/auth"
	"collaborative-text-editor/internal/errors"
	"collaborative-text-editor/internal/middleware"
	"collaborative-text-editor/redis"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, u *User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockService) Login(ctx context.Context, email, password string) (*User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockService) GetUserByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockService) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

type handlerFixture struct {
	service *MockService
	jwt     *auth.JWT
	tokens  *redis.TokenStore
	router  *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	tokens := redis.NewTokenStoreWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	jwt := auth.NewJWT("test-secret", time.Hour)

	service := new(MockService)
	handler := NewHandler(service, jwt, tokens, time.Hour)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)

	authed := router.Group("/api/auth", auth.Middleware(jwt, tokens))
	authed.DELETE("/logout", handler.Logout)
	authed.GET("/profile", handler.GetProfile)

	return &handlerFixture{service: service, jwt: jwt, tokens: tokens, router: router}
}

func (f *handlerFixture) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) liveToken(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(userID, username)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Save(context.Background(), token, userID, time.Hour))
	return token
}

func TestRegisterCreatesUserAndIssuesToken(t *testing.T) {
	f := newHandlerFixture(t)

	f.service.On("Register", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*User).ID = "u1"
	})

	w := f.request(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	}, "")

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string   `json:"token"`
		User  SafeUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)

	// Issued token is live in the store.
	live, err := f.tokens.Exists(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.True(t, live)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "al",
		"email":    "not-an-email",
		"password": "123",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.service.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newHandlerFixture(t)

	f.service.On("Register", mock.Anything, mock.Anything).
		Return(errors.UnprocessableEntity("User already registered", nil))

	w := f.request(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	}, "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "User already registered")
}

func TestLoginReturnsTokenAndSafeUser(t *testing.T) {
	f := newHandlerFixture(t)

	f.service.On("Login", mock.Anything, "alice@example.com", "secret123").
		Return(&User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "h"}, nil)

	w := f.request(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "secret123",
	}, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token")
	// The password hash never leaves the server.
	assert.NotContains(t, w.Body.String(), "PasswordHash")
	assert.NotContains(t, w.Body.String(), `"h"`)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newHandlerFixture(t)

	f.service.On("Login", mock.Anything, "alice@example.com", "wrong").
		Return(nil, errors.Unauthorized("Wrong password", nil))

	w := f.request(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.liveToken(t, "u1", "alice")

	w := f.request(t, http.MethodDelete, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	live, err := f.tokens.Exists(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, live)

	// The revoked token no longer passes the auth middleware.
	w = f.request(t, http.MethodDelete, "/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfile(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.liveToken(t, "u1", "alice")

	f.service.On("GetUserByID", mock.Anything, "u1").
		Return(&User{ID: "u1", Username: "alice", Email: "alice@example.com"}, nil)

	w := f.request(t, http.MethodGet, "/api/auth/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodGet, "/api/auth/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
