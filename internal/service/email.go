package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appURL    string
	appName   string
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

// VerificationURL builds the confirmation link. redirect, when set, is
// carried along so the client can land the user back where they started.
func (s *EmailService) VerificationURL(token, redirect string) string {
	verifyURL := fmt.Sprintf("%s/api/auth/verify/%s", s.appURL, token)
	if redirect != "" {
		verifyURL += "?redirect=" + url.QueryEscape(redirect)
	}
	return verifyURL
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, email, token, redirect string) error {
	verifyURL := s.VerificationURL(token, redirect)
	subject, body := verificationEmailTemplate(verifyURL, s.appName)
	return s.send(ctx, "email_verification", []string{email}, subject, body, verifyURL)
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	issuesURL := fmt.Sprintf("%s/issues", s.appURL)
	subject, body := welcomeEmailTemplate(name, issuesURL, s.appName)
	return s.send(ctx, "welcome", []string{email}, subject, body, issuesURL)
}

// SendReportNotification forwards a moderation report or contact message to the support inboxes.
func (s *EmailService) SendReportNotification(ctx context.Context, recipients []string, kind, subjectLine, details string) error {
	if len(recipients) == 0 {
		slog.Warn("report notification skipped, no recipients configured", "kind", kind)
		return nil
	}
	subject, body := reportNotificationTemplate(kind, subjectLine, details, s.appName)
	return s.send(ctx, "report_"+kind, recipients, subject, body, "")
}

func (s *EmailService) send(ctx context.Context, kind string, to []string, subject, body, link string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject, "url", link)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      to,
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", to)
	}
	return err
}
