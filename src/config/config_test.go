package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	is := is.New(t)
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "3")
	t.Setenv("ZERO_COUPON_PRINCIPAL_THRESHOLD", "0.25")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("BATCH_WORKERS", "not-a-number")
	t.Setenv("DAY_COUNT", "ACT/ACT-DAILY")

	cfg := LoadConfig()
	is.Equal(cfg.ClassifierMaxAttempts, 3)
	is.Equal(cfg.ZeroCouponPrincipalThreshold, 0.25)
	is.Equal(cfg.PollInterval, 5*time.Minute)
	is.Equal(cfg.BatchWorkers, 4)
	is.Equal(cfg.RecordDateOffsetDays, 15)
	is.Equal(cfg.QuoteBatchSize, 200)
	is.Equal(cfg.DayCount, "ACT/ACT-DAILY")
}

func TestValidateKiteReadsTokenFile(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "access_token.txt")
	is.NoErr(os.WriteFile(path, []byte("tok123\n"), 0o600))

	cfg := &AppConfig{KiteAPIKey: "key", KiteAccessTokenPath: path}
	is.NoErr(cfg.ValidateKite())
	is.Equal(cfg.KiteAccessToken, "tok123")

	missing := &AppConfig{KiteAPIKey: "key", KiteAccessTokenPath: filepath.Join(t.TempDir(), "nope")}
	is.True(missing.ValidateKite() != nil)
}

func TestValidateNotifier(t *testing.T) {
	is := is.New(t)
	is.NoErr((&AppConfig{EmailServiceProvider: "log"}).ValidateNotifier())
	is.True((&AppConfig{EmailServiceProvider: "mailgun", MailgunDomain: "mg.example.com"}).ValidateNotifier() != nil)
	is.NoErr((&AppConfig{
		EmailServiceProvider: "mailgun",
		MailgunDomain:        "mg.example.com",
		MailgunPrivateAPIKey: "key",
		SenderEmail:          "ops@example.com",
		ReportRecipient:      "desk@example.com",
	}).ValidateNotifier())
}
