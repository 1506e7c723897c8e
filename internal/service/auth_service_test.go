package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

type fakeAuthRepo struct {
	users []*models.User
}

func (f *fakeAuthRepo) find(match func(*models.User) bool) (*models.User, error) {
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeAuthRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now)
	})
}

func (f *fakeAuthRepo) Create(ctx context.Context, user *models.User) error {
	if _, err := f.FindByEmail(ctx, user.Email); err == nil {
		return repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("u%d", len(f.users)+1)
	}
	f.users = append(f.users, user)
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeAuthRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpiresAt = &expiresAt
	return nil
}

func (f *fakeAuthRepo) ResetPassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, err := f.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
	return nil
}

type fakeAudit struct {
	logs []*models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type capturedReset struct {
	user  *models.User
	token string
}

type fakeNotifier struct {
	sent []capturedReset
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error {
	f.sent = append(f.sent, capturedReset{user: user, token: token})
	return nil
}

func newUser(t *testing.T, id, email, password string, role models.UserRole) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Name: "User " + id, Email: email, PasswordHash: string(hash), Role: role}
}

func newTestAuthService(repo *fakeAuthRepo, notifier *fakeNotifier, audit *fakeAudit) *AuthService {
	return NewAuthService(AuthServiceParams{
		Users:    repo,
		Audit:    audit,
		Notifier: notifier,
		Config:   AuthConfig{Secret: "secret", TokenExpiry: time.Hour, Issuer: "test"},
	})
}

func TestAuthLoginIssuesVerifiableToken(t *testing.T) {
	repo := &fakeAuthRepo{users: []*models.User{newUser(t, "a1", "admin@example.com", "admin123", models.RoleAdmin)}}
	svc := newTestAuthService(repo, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.UserID)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	repo := &fakeAuthRepo{users: []*models.User{newUser(t, "a1", "admin@example.com", "admin123", models.RoleAdmin)}}
	svc := newTestAuthService(repo, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthRegisterDefaultsRoleAndRejectsDuplicates(t *testing.T) {
	repo := &fakeAuthRepo{}
	audit := &fakeAudit{}
	svc := newTestAuthService(repo, nil, audit)

	batch := "2080"
	info, err := svc.Register(context.Background(), "admin-1", models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1", Batch: &batch})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUserRegister, audit.logs[0].Action)

	_, err = svc.Register(context.Background(), "admin-1", models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestAuthRegisterInvalidatesDashboard(t *testing.T) {
	repo := &fakeAuthRepo{}
	cache := &recordingInvalidator{}
	svc := NewAuthService(AuthServiceParams{
		Users:  repo,
		Cache:  cache,
		Config: AuthConfig{Secret: "secret", TokenExpiry: time.Hour},
	})

	_, err := svc.Register(context.Background(), "admin-1", models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, []string{dashboardCachePattern}, cache.patterns)

	_, err = svc.Register(context.Background(), "admin-1", models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Len(t, cache.patterns, 1, "failed registration must not invalidate")
}

func TestAuthRegisterValidatesPayload(t *testing.T) {
	svc := newTestAuthService(&fakeAuthRepo{}, nil, nil)
	_, err := svc.Register(context.Background(), "", models.RegisterRequest{Name: "", Email: "bad", Password: "1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "email must be a valid email address")
}

func TestAuthChangePassword(t *testing.T) {
	repo := &fakeAuthRepo{users: []*models.User{newUser(t, "s1", "s@example.com", "oldpass", models.RoleStudent)}}
	svc := newTestAuthService(repo, nil, &fakeAudit{})
	identity := models.Identity{UserID: "s1", Role: models.RoleStudent}

	err := svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpass"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass"}))
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "s@example.com", Password: "newpass"})
	assert.NoError(t, err)
}

func TestAuthForgotAndResetPassword(t *testing.T) {
	repo := &fakeAuthRepo{users: []*models.User{newUser(t, "s1", "s@example.com", "oldpass", models.RoleStudent)}}
	notifier := &fakeNotifier{}
	svc := newTestAuthService(repo, notifier, &fakeAudit{})

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "s@example.com"}))
	require.Len(t, notifier.sent, 1)
	token := notifier.sent[0].token
	require.NotNil(t, repo.users[0].ResetTokenHash)
	assert.Equal(t, HashResetToken(token), *repo.users[0].ResetTokenHash)
	assert.NotEqual(t, token, *repo.users[0].ResetTokenHash)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "forged", Password: "brandnew"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, Password: "brandnew"}))
	assert.Nil(t, repo.users[0].ResetTokenHash)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, Password: "again123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthResetTokenExpires(t *testing.T) {
	repo := &fakeAuthRepo{users: []*models.User{newUser(t, "s1", "s@example.com", "oldpass", models.RoleStudent)}}
	notifier := &fakeNotifier{}
	svc := newTestAuthService(repo, notifier, nil)
	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "s@example.com"}))

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: notifier.sent[0].token, Password: "brandnew"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthForgotPasswordUnknownEmailSucceedsSilently(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestAuthService(&fakeAuthRepo{}, notifier, nil)
	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@example.com"}))
	assert.Empty(t, notifier.sent)
}

func TestAuthAuthenticateReloadsRole(t *testing.T) {
	user := newUser(t, "u1", "u@example.com", "secret1", models.RoleAdmin)
	repo := &fakeAuthRepo{users: []*models.User{user}}
	svc := newTestAuthService(repo, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "secret1"})
	require.NoError(t, err)

	user.Role = models.RoleStudent
	claims, err := svc.Authenticate(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)

	repo.users = nil
	_, err = svc.Authenticate(context.Background(), resp.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
