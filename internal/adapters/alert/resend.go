package alert

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendNotifier emails failure notices via the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     string
}

// NewResendNotifier creates a notifier for the given operator address.
// PRE: apiKey is a valid Resend API key; from and to are valid addresses
// POST: Returns a ready-to-use notifier
func NewResendNotifier(apiKey, from, to string) *ResendNotifier {
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

// NotifyFailure sends one email describing the failed job.
// PRE: n carries the task id and failure description
// POST: Email is queued for delivery
func (s *ResendNotifier) NotifyFailure(ctx context.Context, n FailureNotice) error {
	body := fmt.Sprintf(
		"<p>Lectio send job <strong>%s</strong> to <strong>%s</strong> failed permanently.</p><p>%s</p>",
		html.EscapeString(n.TaskID), html.EscapeString(n.Receiver), html.EscapeString(n.Description))

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.to},
		Subject: fmt.Sprintf("Lectio send failed: %s", n.Receiver),
		Html:    body,
	})
	if err != nil {
		slog.Error("alert_send_failed", "task_id", n.TaskID, "error", err)
		return fmt.Errorf("resend alert failed: %w", err)
	}

	slog.Info("alert_sent", "task_id", n.TaskID, "message_id", sent.Id)
	return nil
}
