// Package notify delivers interview completion notices to candidates.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/pavelanni/interviewer/internal/store"
)

// Completion is what a candidate is told when their interview ends.
type Completion struct {
	CandidateID string
	Name        string
	Email       string
	Score       int
	Summary     string
}

// Notifier sends a completion notice. Failures are reported to the caller,
// which decides whether to surface them.
type Notifier interface {
	NotifyCompletion(ctx context.Context, c Completion) error
	Channel() string
}

// Log writes notices to the structured log instead of sending them.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Channel() string { return "log" }

func (l Log) NotifyCompletion(ctx context.Context, c Completion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "interview completion notice",
		"candidate", c.CandidateID, "to", c.Email, "score", c.Score)
	return nil
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends plain-text completion emails.
type SMTP struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTP validates cfg and returns a mail notifier.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail, now: time.Now}, nil
}

func (s *SMTP) Channel() string { return "smtp" }

func (s *SMTP) NotifyCompletion(ctx context.Context, c Completion) error {
	if c.Email == "" {
		return errors.New("candidate has no email address")
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	msg := s.message(c)

	// net/smtp has no context support; run it aside and honour cancellation.
	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, s.cfg.From, []string{c.Email}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", c.Email, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTP) message(c Completion) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", c.Email)
	b.WriteString("Subject: Your interview results\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", c.Name)
	fmt.Fprintf(&b, "Thank you for completing the interview. Your final score is %d/100.\r\n", c.Score)
	if c.Summary != "" {
		fmt.Fprintf(&b, "\r\n%s\r\n", c.Summary)
	}
	return []byte(b.String())
}

// DeliveryLog is the slice of store.Store that Recorder writes to.
type DeliveryLog interface {
	RecordNotification(ctx context.Context, n store.Notification) (int64, error)
}

// Recorder wraps a Notifier and writes every attempt to the delivery log.
type Recorder struct {
	Next  Notifier
	Store DeliveryLog
}

func (r Recorder) Channel() string { return r.Next.Channel() }

func (r Recorder) NotifyCompletion(ctx context.Context, c Completion) error {
	sendErr := r.Next.NotifyCompletion(ctx, c)

	entry := store.Notification{
		CandidateID: c.CandidateID,
		Email:       c.Email,
		Channel:     r.Next.Channel(),
		Status:      store.NotificationSent,
	}
	if sendErr != nil {
		entry.Status = store.NotificationFailed
		entry.Error = sendErr.Error()
	}
	// The log entry is written even when ctx expired during sending.
	if _, err := r.Store.RecordNotification(context.WithoutCancel(ctx), entry); err != nil {
		return errors.Join(sendErr, fmt.Errorf("record notification: %w", err))
	}
	return sendErr
}
