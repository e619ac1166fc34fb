// Package notify emails users when an evaluation finishes or fails. Delivery
// problems are logged and never reach the pipeline.
package notify

import (
	"fmt"
	"log/slog"

	gomail "gopkg.in/gomail.v2"

	"github.com/gradeflow/gradeflow/internal/model"
)

// SMTPConfig selects the transport: port 587 with STARTTLS, or 465 with SSL
// when SSL is set. An empty Host disables SMTP and logs messages instead.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// Directory resolves recipients and asset names. Satisfied by store.Store.
type Directory interface {
	UserEmail(userID string) (string, error)
	GetEvaluation(id string) (model.Evaluation, error)
	AssetName(fileID string) (string, error)
}

// Notifier sends evaluation outcome emails.
type Notifier struct {
	cfg SMTPConfig
	dir Directory

	send func(to, subject, body string) error
}

func New(cfg SMTPConfig, dir Directory) *Notifier {
	n := &Notifier{cfg: cfg, dir: dir}
	if cfg.Host == "" {
		slog.Info("SMTP not configured, notifications log to stdout")
		n.send = n.consoleSend
	} else {
		n.send = n.smtpSend
	}
	return n
}

// SendCompletion notifies the user that grading finished.
func (n *Notifier) SendCompletion(evaluationID, userID string) {
	body := fmt.Sprintf("Grading of %s has completed. The results are ready for review.", n.assetName(evaluationID))
	n.deliver(evaluationID, userID, "Evaluation Completed", body)
}

// SendError notifies the user that grading failed.
func (n *Notifier) SendError(evaluationID, userID string) {
	body := fmt.Sprintf("Grading of %s could not be completed. Please re-upload the files or contact support.", n.assetName(evaluationID))
	n.deliver(evaluationID, userID, "Evaluation Processing Error", body)
}

func (n *Notifier) deliver(evaluationID, userID, subject, body string) {
	to, err := n.dir.UserEmail(userID)
	if err != nil {
		slog.Error("notification dropped, cannot resolve user email",
			"evaluation_id", evaluationID, "user_id", userID, "error", err)
		return
	}
	if err := n.send(to, subject, body); err != nil {
		slog.Error("notification delivery failed",
			"evaluation_id", evaluationID, "to", to, "subject", subject, "error", err)
	}
}

// assetName resolves the mark scheme's display name, falling back to the
// evaluation id.
func (n *Notifier) assetName(evaluationID string) string {
	ev, err := n.dir.GetEvaluation(evaluationID)
	if err != nil {
		slog.Warn("cannot resolve evaluation for notification", "evaluation_id", evaluationID, "error", err)
		return "evaluation " + evaluationID
	}
	name, err := n.dir.AssetName(ev.MarkSchemeFileID)
	if err != nil {
		slog.Warn("cannot resolve asset name for notification", "evaluation_id", evaluationID, "error", err)
		return "evaluation " + evaluationID
	}
	return name
}

func (n *Notifier) smtpSend(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.SSL = n.cfg.SSL
	return d.DialAndSend(m)
}

func (n *Notifier) consoleSend(to, subject, body string) error {
	slog.Info("notification (console)", "to", to, "subject", subject, "body", body)
	return nil
}
