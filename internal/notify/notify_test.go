package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/gradeflow/gradeflow/internal/model"
)

type fakeDirectory struct {
	email     string
	emailErr  error
	assetName string
	assetErr  error
}

func (d *fakeDirectory) UserEmail(string) (string, error) {
	return d.email, d.emailErr
}

func (d *fakeDirectory) GetEvaluation(id string) (model.Evaluation, error) {
	return model.Evaluation{ID: id, MarkSchemeFileID: "scheme-file"}, nil
}

func (d *fakeDirectory) AssetName(string) (string, error) {
	return d.assetName, d.assetErr
}

type sent struct {
	to, subject, body string
}

func capture(target *[]sent) func(to, subject, body string) error {
	return func(to, subject, body string) error {
		*target = append(*target, sent{to, subject, body})
		return nil
	}
}

func TestSendCompletion(t *testing.T) {
	dir := &fakeDirectory{email: "teacher@uni.edu", assetName: "Midterm Scheme.pdf"}
	n := New(SMTPConfig{}, dir)

	var got []sent
	n.send = capture(&got)

	n.SendCompletion("eval-1", "user-1")
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1", len(got))
	}
	if got[0].to != "teacher@uni.edu" {
		t.Errorf("to = %q", got[0].to)
	}
	if got[0].subject != "Evaluation Completed" {
		t.Errorf("subject = %q", got[0].subject)
	}
	if !strings.Contains(got[0].body, "Midterm Scheme.pdf") {
		t.Errorf("body = %q, want asset name included", got[0].body)
	}
}

func TestSendError(t *testing.T) {
	dir := &fakeDirectory{email: "teacher@uni.edu", assetName: "Midterm Scheme.pdf"}
	n := New(SMTPConfig{}, dir)

	var got []sent
	n.send = capture(&got)

	n.SendError("eval-1", "user-1")
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1", len(got))
	}
	if got[0].subject != "Evaluation Processing Error" {
		t.Errorf("subject = %q", got[0].subject)
	}
}

func TestDeliveryFailureDoesNotPropagate(t *testing.T) {
	dir := &fakeDirectory{email: "teacher@uni.edu", assetName: "Scheme.pdf"}
	n := New(SMTPConfig{Host: "smtp.unreachable.invalid", Port: 587}, dir)
	n.send = func(string, string, string) error {
		return errors.New("dial tcp: connection refused")
	}

	// Must only log.
	n.SendCompletion("eval-1", "user-1")
	n.SendError("eval-1", "user-1")
}

func TestUnknownUserDropsMessage(t *testing.T) {
	dir := &fakeDirectory{emailErr: errors.New("no such user")}
	n := New(SMTPConfig{}, dir)

	var got []sent
	n.send = capture(&got)

	n.SendCompletion("eval-1", "user-404")
	if len(got) != 0 {
		t.Fatalf("sent %d messages, want 0 for unknown user", len(got))
	}
}

func TestAssetNameFallsBackToEvaluationID(t *testing.T) {
	dir := &fakeDirectory{email: "teacher@uni.edu", assetErr: errors.New("no such asset")}
	n := New(SMTPConfig{}, dir)

	var got []sent
	n.send = capture(&got)

	n.SendCompletion("eval-9", "user-1")
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1", len(got))
	}
	if !strings.Contains(got[0].body, "eval-9") {
		t.Errorf("body = %q, want evaluation id fallback", got[0].body)
	}
}
