package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/kanzhen/bizmanage/internal/config"
	"github.com/kanzhen/bizmanage/pkg/logger"
)

// EmailService sends notification mail over SMTP. An empty host disables
// delivery; sends then become no-ops.
type EmailService struct {
	cfg *config.SMTPConfig
}

func NewEmailService(cfg *config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

func (s *EmailService) Enabled() bool {
	return s.cfg != nil && s.cfg.Host != ""
}

// Send delivers a single HTML mail.
func (s *EmailService) Send(to []string, subject, body string) error {
	if !s.Enabled() || len(to) == 0 {
		return nil
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(to, ","),
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, from, to, []byte(message.String())); err != nil {
		logger.Infof("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent notification to %v", to)
	return nil
}

// BuildDocumentEmail renders the standard two-column notification body used
// for invoice, quotation and payment mail.
func BuildDocumentEmail(title string, rows [][2]string, footer string) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", title))
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>", r[0], r[1]))
	}
	sb.WriteString("</table>")
	if footer != "" {
		sb.WriteString(fmt.Sprintf("<p>%s</p>", footer))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Powered by BizManage</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}
