package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
)

type fakeAuthenticator struct {
	hosts map[string]string
}

func (f *fakeAuthenticator) Register(username, password string) (string, error) {
	if _, taken := f.hosts[username]; taken {
		return "", apperr.New(apperr.KindValidation, "username already taken")
	}
	f.hosts[username] = password
	return "token-" + username, nil
}

func (f *fakeAuthenticator) Login(username, password string) (string, error) {
	if f.hosts[username] != password {
		return "", apperr.New(apperr.KindPermissionDenied, "invalid credentials")
	}
	return "token-" + username, nil
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&fakeAuthenticator{hosts: map[string]string{"host1": "password123"}})
	r := gin.New()
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	return r
}

func TestRegisterEndpoint(t *testing.T) {
	r := authRouter()

	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"host2","password":"password123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "token-host2", resp.Token)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	r := authRouter()
	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"host1","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username already taken")
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	r := authRouter()
	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"host2","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	r := authRouter()

	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"username":"host1","password":"password123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "token-host1", resp.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	r := authRouter()
	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"username":"host1","password":"wrong"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}
