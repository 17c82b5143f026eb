package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/bondflow/src/config"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
)

// NewNotifier picks the report channel from EMAIL_SERVICE_PROVIDER. Anything
// other than a complete mailgun configuration logs the report instead.
func NewNotifier(cfg *config.AppConfig) Notifier {
	provider := strings.ToLower(cfg.EmailServiceProvider)
	logger.OrDefault(nil).Info("Initializing report notifier", "provider", provider)

	switch provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunPrivateAPIKey == "" || cfg.SenderEmail == "" || cfg.ReportRecipient == "" {
			logger.OrDefault(nil).Warn("Mailgun configuration incomplete (Domain, API Key, SenderEmail or ReportRecipient missing). Falling back to LogNotifier.")
			return &LogNotifier{}
		}
		mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey)
		logger.OrDefault(nil).Info("Mailgun client initialized", "domain", cfg.MailgunDomain)
		return &MailgunNotifier{
			mg:          mg,
			senderEmail: cfg.SenderEmail,
			senderName:  cfg.SenderName,
			recipient:   cfg.ReportRecipient,
		}
	default:
		return &LogNotifier{}
	}
}

// ReportSubject is the one-line summary used as mail subject.
func ReportSubject(r models.BatchReport) string {
	status := "OK"
	if r.HasFailures() {
		status = fmt.Sprintf("%d skipped", len(r.Skipped))
	}
	return fmt.Sprintf("[bondflow] %s run %s: %d/%d succeeded (%s)", r.Job, shortID(r.RunID), r.Succeeded, r.Total, status)
}

// ReportBody renders the skipped instruments grouped by reason.
func ReportBody(r models.BatchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\nRun: %s\nStarted: %s\nFinished: %s\nTotal: %d\nSucceeded: %d\nSkipped: %d\n",
		r.Job, r.RunID, r.StartedAt.Format(time.RFC3339), r.FinishedAt.Format(time.RFC3339),
		r.Total, r.Succeeded, len(r.Skipped))
	if !r.HasFailures() {
		return b.String()
	}

	byReason := make(map[models.SkipReason][]models.SkippedInstrument)
	var order []models.SkipReason
	for _, s := range r.Skipped {
		if _, seen := byReason[s.Reason]; !seen {
			order = append(order, s.Reason)
		}
		byReason[s.Reason] = append(byReason[s.Reason], s)
	}
	for _, reason := range order {
		fmt.Fprintf(&b, "\n%s (%d)\n", reason, len(byReason[reason]))
		for _, s := range byReason[reason] {
			retry := ""
			if s.Retryable {
				retry = " [retryable]"
			}
			fmt.Fprintf(&b, "  - %d %s%s: %s\n", s.SecurityID, s.ISIN, retry, s.Error)
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type MailgunNotifier struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	recipient   string
}

func (n *MailgunNotifier) NotifyBatch(ctx context.Context, report models.BatchReport) error {
	from := fmt.Sprintf("%s <%s>", n.senderName, n.senderEmail)
	message := n.mg.NewMessage(from, ReportSubject(report), ReportBody(report), n.recipient)
	message.AddTag("batch-report")

	ctx, cancel := context.WithTimeout(ctx, time.Second*20)
	defer cancel()
	resp, id, err := n.mg.Send(ctx, message)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to send batch report via Mailgun", "error", err, "runID", report.RunID, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.FromContext(ctx).Info("Batch report sent via Mailgun", "runID", report.RunID, "id", id, "mailgunResp", resp)
	return nil
}

// LogNotifier writes the report to the structured log.
type LogNotifier struct{}

func (LogNotifier) NotifyBatch(ctx context.Context, report models.BatchReport) error {
	log := logger.FromContext(ctx)
	log.Info("Batch run finished", "job", report.Job, "runID", report.RunID,
		"total", report.Total, "succeeded", report.Succeeded, "skipped", len(report.Skipped),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	for _, s := range report.Skipped {
		log.Warn("Instrument skipped", "runID", report.RunID, "securityID", s.SecurityID,
			"isin", s.ISIN, "reason", s.Reason, "retryable", s.Retryable, "error", s.Error)
	}
	return nil
}
