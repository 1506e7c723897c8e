package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/pkg/config"
)

func TestNewSelectsDriver(t *testing.T) {
	base := config.MailConfig{From: "Student Record <no-reply@example.com>"}

	sender, err := New(base, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	smtpCfg := base
	smtpCfg.Driver = DriverSMTP
	smtpCfg.SMTPHost = "smtp.example.com"
	smtpCfg.SMTPPort = 587
	sender, err = New(smtpCfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)

	sgCfg := base
	sgCfg.Driver = DriverSendGrid
	sgCfg.SendGridAPIKey = "key"
	sender, err = New(sgCfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, sender)
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	_, err := New(config.MailConfig{From: "no-reply@example.com", Driver: DriverSMTP}, nil)
	assert.Error(t, err)

	_, err = New(config.MailConfig{From: "no-reply@example.com", Driver: "pigeon"}, nil)
	assert.Error(t, err)

	_, err = New(config.MailConfig{From: "not an address", Driver: DriverLog}, nil)
	assert.Error(t, err)
}

func TestSendGridSenderBuildsRequest(t *testing.T) {
	sender := NewSendGridSender("secret", &mail.Address{Name: "Student Record", Address: "no-reply@example.com"})
	var captured rest.Request
	sender.api = func(req rest.Request) (*rest.Response, error) {
		captured = req
		return &rest.Response{StatusCode: 202}, nil
	}

	err := sender.Send(context.Background(), Message{To: "asha@example.com", Subject: "Reset", Text: "link", HTML: "<p>link</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", captured.Headers["Authorization"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(captured.Body, &body))
	assert.Len(t, body["content"], 2)
}

func TestSendGridSenderSurfacesErrors(t *testing.T) {
	sender := NewSendGridSender("secret", &mail.Address{Address: "no-reply@example.com"})
	sender.api = func(req rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: 401, Body: "unauthorized"}, nil
	}
	assert.Error(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "x", Text: "y"}))

	sender.api = func(req rest.Request) (*rest.Response, error) {
		return nil, errors.New("network down")
	}
	assert.Error(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "x", Text: "y"}))
}
