package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-record-api/internal/models"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type fakeAuthSrv struct {
	registerActor string
	resetReq      models.ResetPasswordRequest
	changeBy      models.Identity
	forgotErr     error
	changeErr     error
}

func (f *fakeAuthSrv) Register(ctx context.Context, actorID string, req models.RegisterRequest) (*models.UserInfo, error) {
	f.registerActor = actorID
	return &models.UserInfo{ID: "u1", Name: req.Name, Email: req.Email, Role: models.RoleStudent}, nil
}

func (f *fakeAuthSrv) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{Token: "jwt", ExpiresIn: 3600}, nil
}

func (f *fakeAuthSrv) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

func (f *fakeAuthSrv) ChangePassword(ctx context.Context, identity models.Identity, req models.ChangePasswordRequest) error {
	f.changeBy = identity
	return f.changeErr
}

func (f *fakeAuthSrv) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	return f.forgotErr
}

func (f *fakeAuthSrv) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	f.resetReq = req
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newTestContext(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"secret"}`)
	handler.Login(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"nope"}`)
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/auth/login", `{"email":`)
	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerRegisterUsesCaller(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/register", `{"name":"Asha","email":"asha@example.com","password":"secret1"}`)
	handler.Register(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/auth/register", `{"name":"Asha","email":"asha@example.com","password":"secret1"}`)
	asUser(c, "admin-1", models.RoleAdmin)
	handler.Register(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", srv.registerActor)
}

func TestAuthHandlerForgotPasswordIsAccepted(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newTestContext(http.MethodPost, "/auth/forgot-password", `{"email":"nobody@example.com"}`)
	handler.ForgotPassword(c)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAuthHandlerResetPasswordReadsToken(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/reset-password/abc123", `{"password":"newpass"}`)
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	handler.ResetPassword(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", srv.resetReq.Token)
	assert.Equal(t, "newpass", srv.resetReq.Password)
}

func TestAuthHandlerChangePasswordForbidden(t *testing.T) {
	srv := &fakeAuthSrv{changeErr: appErrors.Clone(appErrors.ErrForbidden, "old password is incorrect")}
	handler := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPut, "/auth/change-password", `{"oldPassword":"x","newPassword":"yyyyyy"}`)
	asUser(c, "s1", models.RoleStudent)
	handler.ChangePassword(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.Identity{UserID: "s1", Role: models.RoleStudent}, srv.changeBy)
}
