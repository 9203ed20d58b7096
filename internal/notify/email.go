package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/eventpass/api/internal/platform/jobs"
)

// EmailConfig configures the SMTP relay.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers plain-text mail through an SMTP relay.
type EmailSender struct {
	addr     string
	auth     smtp.Auth
	from     mail.Address
	sendMail sendMailFunc
	now      func() time.Time
}

// NewEmailSender validates the relay configuration.
func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	from, err := mail.ParseAddress(strings.TrimSpace(cfg.From))
	if err != nil {
		return nil, fmt.Errorf("email: invalid from address: %w", err)
	}
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &EmailSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		from:     *from,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

// Send delivers one message. A malformed recipient is permanent.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", jobs.ErrPermanent, err)
	}
	msg := s.compose(*rcpt, subject, body)
	if err := s.sendMail(s.addr, s.auth, s.from.Address, []string{rcpt.Address}, msg); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

func (s *EmailSender) compose(to mail.Address, subject, body string) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	header("From", s.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", strings.TrimSpace(subject)))
	header("Date", s.now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}
