// Package notify delivers staff notifications about new comments.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

// Message is a plain-text notification
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when a relay is configured and a log
// sender otherwise
func NewSender(cfg config.NotifyConfig, log zerolog.Logger) Sender {
	if cfg.SMTPEnabled() {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(log)
}

// SMTPSender sends mail through a relay
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a sender for the configured relay. Authentication is
// only used when a user is set.
func NewSMTPSender(cfg config.NotifyConfig) *SMTPSender {
	s := &SMTPSender{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from: cfg.From,
		send: sendMail,
	}
	if cfg.SMTPUser != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return s
}

// Send delivers msg. The whole SMTP exchange is bounded by ctx.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if err := s.send(ctx, s.addr, s.auth, s.from, msg.To, s.format(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// dialTimeout bounds the connect when ctx carries no deadline
const dialTimeout = 10 * time.Second

// sendMail is smtp.SendMail with the connection deadline taken from ctx.
// Cancelling ctx closes the connection and fails the exchange.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) format(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogSender writes messages to the log instead of sending them
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("Notification")
	return nil
}

// CommentMessage describes a new comment for moderators
func CommentMessage(target *models.Target, c *models.Comment, public bool) Message {
	title := target.Title
	if title == "" {
		title = target.Ref().String()
	}

	status := "published"
	if !public {
		status = "awaiting moderation"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A new %s was posted on %q (%s).\n\n", c.Kind, title, status)
	fmt.Fprintf(&b, "Author: %s\n", c.Author.DisplayName())
	if c.Author.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", c.Author.Email)
	}
	if target.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", target.URL)
	}
	b.WriteString("\n")
	b.WriteString(markup.PlainText(c.Markup, c.Body))
	b.WriteString("\n")

	return Message{
		Subject: fmt.Sprintf("[comments] New %s on %s", c.Kind, title),
		Body:    b.String(),
	}
}
