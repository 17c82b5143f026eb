package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/username/bondflow/src/logger"
)

// MarketHours is the daily trading window in the exchange's time zone.
type MarketHours struct {
	Open     time.Duration // since local midnight
	Close    time.Duration
	Location *time.Location
}

// ParseMarketHours reads "HH:MM" open and close times.
func ParseMarketHours(openClock, closeClock string, loc *time.Location) (MarketHours, error) {
	o, err := parseClock(openClock)
	if err != nil {
		return MarketHours{}, fmt.Errorf("market open: %w", err)
	}
	c, err := parseClock(closeClock)
	if err != nil {
		return MarketHours{}, fmt.Errorf("market close: %w", err)
	}
	if c <= o {
		return MarketHours{}, fmt.Errorf("market close %s is not after open %s", closeClock, openClock)
	}
	if loc == nil {
		loc = time.UTC
	}
	return MarketHours{Open: o, Close: c, Location: loc}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// OpenAt and CloseAt return the window bounds on t's calendar day.
func (h MarketHours) OpenAt(t time.Time) time.Time {
	return midnight(t.In(h.Location)).Add(h.Open)
}

func (h MarketHours) CloseAt(t time.Time) time.Time {
	return midnight(t.In(h.Location)).Add(h.Close)
}

// NextRunTime returns the first multiple of interval counted from base's local
// midnight that is strictly after base.
func NextRunTime(base time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return base
	}
	start := midnight(base)
	elapsed := base.Sub(start)
	return start.Add((elapsed/interval + 1) * interval)
}

// MarketScheduler runs a job on wall-clock aligned ticks during market hours.
type MarketScheduler struct {
	hours    MarketHours
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

func NewMarketScheduler(hours MarketHours, interval time.Duration, log *slog.Logger) *MarketScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &MarketScheduler{
		hours:    hours,
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
		log:      logger.OrDefault(log),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run waits for the market to open, then calls job every interval until the
// close. Job errors are logged and the loop continues. It returns nil once the
// market has closed for the day and ctx.Err() if cancelled.
func (s *MarketScheduler) Run(ctx context.Context, job func(ctx context.Context) error) error {
	for {
		now := s.now().In(s.hours.Location)
		openAt, closeAt := s.hours.OpenAt(now), s.hours.CloseAt(now)

		if now.Before(openAt) {
			s.log.Info("Market not open yet, sleeping", "until", openAt.Format(time.RFC3339))
			if err := s.sleep(ctx, openAt.Sub(now)); err != nil {
				return err
			}
			continue
		}
		if now.After(closeAt) {
			s.log.Info("Market closed, stopping poller", "close", closeAt.Format(time.RFC3339))
			return nil
		}

		start := s.now()
		if err := job(ctx); err != nil {
			s.log.Error("Scheduled job failed", "error", err)
		} else {
			s.log.Info("Scheduled job finished", "duration", s.now().Sub(start).String())
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		next := NextRunTime(s.now().In(s.hours.Location), s.interval)
		if next.After(closeAt) {
			s.log.Info("Next run falls after market close, stopping poller", "next", next.Format(time.RFC3339))
			return nil
		}
		if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
			return err
		}
	}
}
