package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/pkg/jobs"
	"github.com/noah-isme/student-record-api/pkg/mailer"
)

const (
	// MailQueue is the queue name shared by the API and the mail worker.
	MailQueue = "mail"
	// JobPasswordResetEmail is the job type carrying a reset link.
	JobPasswordResetEmail = "password_reset_email"
)

// PasswordResetPayload is the body of a password_reset_email job.
type PasswordResetPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NotificationService enqueues mail jobs and renders them when workers pick them up.
type NotificationService struct {
	dispatcher  jobs.Dispatcher
	sender      mailer.Sender
	metrics     *MetricsService
	logger      *zap.Logger
	frontendURL string
}

// NewNotificationService constructs the service. dispatcher may be nil in
// processes that only consume jobs, sender may be nil in ones that only produce.
func NewNotificationService(dispatcher jobs.Dispatcher, sender mailer.Sender, metrics *MetricsService, logger *zap.Logger, frontendURL string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, sender: sender, metrics: metrics, logger: logger, frontendURL: frontendURL}
}

// SendPasswordReset enqueues the reset mail for user.
func (s *NotificationService) SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error {
	if s.dispatcher == nil {
		return fmt.Errorf("mail dispatcher not configured")
	}
	job, err := jobs.NewJob(JobPasswordResetEmail, PasswordResetPayload{
		Email:     user.Email,
		Name:      user.Name,
		Link:      fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	return s.dispatcher.Enqueue(job)
}

// HandleJob renders and sends a queued mail job.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	var err error
	switch job.Type {
	case JobPasswordResetEmail:
		err = s.sendPasswordReset(ctx, job)
	default:
		s.logger.Warn("dropping unknown mail job", zap.String("type", job.Type), zap.String("job_id", job.ID))
		return nil
	}
	s.metrics.RecordMailJob(job.Type, err)
	return err
}

func (s *NotificationService) sendPasswordReset(ctx context.Context, job jobs.Job) error {
	if s.sender == nil {
		return fmt.Errorf("mail sender not configured")
	}
	var payload PasswordResetPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return s.sender.Send(ctx, RenderPasswordReset(payload))
}

// RenderPasswordReset builds the reset email.
func RenderPasswordReset(p PasswordResetPayload) mailer.Message {
	minutes := int(time.Until(p.ExpiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	text := fmt.Sprintf("Hello %s,\n\nYou requested a password reset. Open the link below to choose a new password:\n\n%s\n\nThe link expires in %d minutes. If you did not request this, ignore this email.\n", p.Name, p.Link, minutes)
	body := fmt.Sprintf(`<p>Hello %s,</p><p>You requested a password reset. Click the link below to choose a new password:</p><p><a href="%s">Reset password</a></p><p>The link expires in %d minutes. If you did not request this, ignore this email.</p>`,
		html.EscapeString(p.Name), html.EscapeString(p.Link), minutes)
	return mailer.Message{
		To:      p.Email,
		Subject: "Password Reset Request",
		Text:    text,
		HTML:    body,
	}
}
