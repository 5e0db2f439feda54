package services

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"inspecta-backend/internal/models"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
	logger      *zap.Logger
}

func NewEmailService(host, port, user, pass, from, frontendURL string, logger *zap.Logger) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		logger.Warn("email service running in dev mode, messages are logged instead of sent")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
		logger:      logger,
	}
}

const emailLayout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8;">
  <div style="max-width: 520px; margin: 32px auto; background: white; border-radius: 8px; overflow: hidden;">
    <div style="background: #0f4c81; padding: 24px;">
      <h1 style="color: white; margin: 0; font-size: 20px;">Inspecta</h1>
    </div>
    <div style="padding: 24px; color: #1f2933; font-size: 14px; line-height: 1.6;">
      <p style="margin: 0 0 12px;">Hello %s,</p>
      %s
      <a href="%s" style="display: inline-block; margin-top: 16px; background: #0f4c81; color: white; text-decoration: none; padding: 10px 24px; border-radius: 6px;">%s</a>
    </div>
  </div>
</body>
</html>`

func (s *EmailService) render(name, content, link, action string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(emailLayout, html.EscapeString(name), content, link, action)
}

func (s *EmailService) SendAssignmentEmail(to, fullName string, task *models.Task) error {
	subject := fmt.Sprintf("New inspection task: %s", task.Title)
	content := fmt.Sprintf(
		`<p style="margin: 0 0 12px;">You have been assigned the inspection task <strong>%s</strong>.</p>
      <p style="margin: 0;">First occurrence: %s (%s).</p>`,
		html.EscapeString(task.Title),
		task.StartsAt.UTC().Format("2006-01-02 15:04 UTC"),
		html.EscapeString(task.Recurrence),
	)
	link := fmt.Sprintf("%s/tasks/%s", s.frontendURL, task.ID)
	return s.sendHTML(to, subject, s.render(fullName, content, link, "Open task"))
}

func (s *EmailService) SendOverdueEmail(to, fullName string, check *models.Check) error {
	subject := fmt.Sprintf("Overdue inspection: %s", check.TaskTitle)
	content := fmt.Sprintf(
		`<p style="margin: 0 0 12px;">The inspection <strong>%s</strong> of <strong>%s</strong> was due at %s and has not been completed.</p>
      <p style="margin: 0;">Current status: %s.</p>`,
		html.EscapeString(check.TaskTitle),
		html.EscapeString(check.ObjectName),
		check.ScheduledFor.UTC().Format(time.RFC1123),
		html.EscapeString(check.Status),
	)
	link := fmt.Sprintf("%s/checks/%s", s.frontendURL, check.ID)
	return s.sendHTML(to, subject, s.render(fullName, content, link, "Open check"))
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		s.logger.Info("dev email", zap.String("to", to), zap.String("subject", subject))
		s.logger.Debug("dev email body", zap.String("body", htmlBody))
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
