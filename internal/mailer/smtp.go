package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/classvault/apiserver/config"
)

// SMTPSender delivers queued mail messages over SMTP. It lives on the
// worker side of the queue; the API server only ever publishes.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one OTP email.
func (s *SMTPSender) Send(msg MailMessage) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	body := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + msg.To,
		"Subject: Your verification code",
		"",
		"Your one-time verification code is: " + msg.Code,
		"It expires in 15 minutes. If you did not request it, ignore this email.",
	}, "\r\n")

	return smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, []byte(body))
}
