package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/taskhub/backend/internal/config"
	"github.com/taskhub/backend/internal/models"
)

// Notifier dispatches task-related emails. Implementations must be safe for
// fire-and-forget use: callers log failures and never propagate them.
type Notifier interface {
	// TaskAssigned notifies a user that a task was assigned to them
	TaskAssigned(user models.User, task models.Task) error

	// DeadlineReminder notifies a user about an upcoming deadline
	DeadlineReminder(user models.User, task models.Task) error
}

// SMTPMailer sends notifications through a plain SMTP server.
type SMTPMailer struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	frontendURL string
}

// NewSMTPMailer creates a mailer from the application configuration.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		username:    cfg.SMTPUser,
		password:    cfg.SMTPPassword,
		from:        cfg.EmailFrom,
		frontendURL: cfg.FrontendURL,
	}
}

// TaskAssigned notifies a user that a task was assigned to them
func (m *SMTPMailer) TaskAssigned(user models.User, task models.Task) error {
	subject := fmt.Sprintf("New task assigned: %s", task.Title)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou have been assigned a new task.\n\nTitle: %s\nPriority: %s\nDeadline: %s\n\nView it here: %s/tasks/%d\n",
		user.Name, task.Title, task.Priority,
		task.Deadline.Format("Mon, 02 Jan 2006 15:04"),
		m.frontendURL, task.ID,
	)
	return m.send(user.Email, subject, body)
}

// DeadlineReminder notifies a user about an upcoming deadline
func (m *SMTPMailer) DeadlineReminder(user models.User, task models.Task) error {
	subject := fmt.Sprintf("Deadline approaching: %s", task.Title)
	body := fmt.Sprintf(
		"Hi %s,\n\nThe task %q is due on %s.\n\nView it here: %s/tasks/%d\n",
		user.Name, task.Title,
		task.Deadline.Format("Mon, 02 Jan 2006 15:04"),
		m.frontendURL, task.ID,
	)
	return m.send(user.Email, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	headers := []string{
		fmt.Sprintf("From: TaskHub <%s>", m.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().Format(time.RFC1123Z)),
		"Content-Type: text/plain; charset=UTF-8",
	}

	var message strings.Builder
	message.WriteString(strings.Join(headers, "\r\n"))
	message.WriteString("\r\n\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(message.String())); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
