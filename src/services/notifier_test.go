package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/username/bondflow/src/config"
	"github.com/username/bondflow/src/models"
)

func sampleReport() models.BatchReport {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return models.BatchReport{
		RunID:      "0f8fad5b-d9cb-469f-a165-70867728950e",
		Job:        JobSchedules,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Minute),
		Total:      3,
		Succeeded:  1,
		Skipped: []models.SkippedInstrument{
			skipped(2, "INE002A01018", errors.New("wrapped: "+models.ErrUnsupportedInstrument.Error())),
			skipped(3, "INE657N07431", models.ErrExternalSource),
		},
	}
}

func TestReportRendering(t *testing.T) {
	is := is.New(t)
	r := sampleReport()
	is.Equal(ReportSubject(r), "[bondflow] schedules run 0f8fad5b: 1/3 succeeded (2 skipped)")

	body := ReportBody(r)
	is.True(strings.Contains(body, "Skipped: 2"))
	is.True(strings.Contains(body, "external_source (1)"))
	is.True(strings.Contains(body, "3 INE657N07431 [retryable]"))

	r.Skipped = nil
	r.Succeeded = 3
	is.True(strings.HasSuffix(ReportSubject(r), "(OK)"))
}

func TestNewNotifier(t *testing.T) {
	is := is.New(t)
	cfg := &config.AppConfig{EmailServiceProvider: "mailgun", MailgunDomain: "mg.example.com"}
	_, isLog := NewNotifier(cfg).(*LogNotifier)
	is.True(isLog)

	cfg.MailgunPrivateAPIKey = "key-123"
	cfg.SenderEmail = "reports@example.com"
	cfg.ReportRecipient = "ops@example.com"
	_, isMailgun := NewNotifier(cfg).(*MailgunNotifier)
	is.True(isMailgun)

	is.NoErr(LogNotifier{}.NotifyBatch(context.Background(), sampleReport()))
}
