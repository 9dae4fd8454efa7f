// Package collect drives the periodic login-scrape-write cycle.
package collect

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"hubone-exporter/pkg/hubone"
	"hubone-exporter/pkg/statuspage"
)

// Measurement is the time-series stream every cycle writes into.
const Measurement = "data_stats"

// Source is the authenticated router session the collector drives.
type Source interface {
	Login(ctx context.Context) error
	StatusPage(ctx context.Context) (string, error)
}

// Sink accepts one timestamped point per collection cycle.
type Sink interface {
	WritePoint(measurement string, at time.Time, fields map[string]interface{}) error
}

// Collector owns the session and runs one cycle at a time; nothing here
// is safe for concurrent use and nothing needs to be.
type Collector struct {
	source   Source
	sink     Sink
	interval time.Duration

	// authenticated tracks whether the session cookie is believed valid.
	// Cleared whenever the router serves the login form instead of the
	// status page.
	authenticated bool
}

func New(source Source, sink Sink, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		sink:     sink,
		interval: interval,
	}
}

// CollectOnce runs a single fetch-and-parse cycle and returns the
// complete record, logging in first if the session is not believed
// valid. An expired session is retried after exactly one re-login; a
// second expiry in the same cycle is reported as an error rather than
// looping.
func (c *Collector) CollectOnce(ctx context.Context) (*statuspage.Record, error) {
	if !c.authenticated {
		if err := c.source.Login(ctx); err != nil {
			return nil, err
		}
		c.authenticated = true
	}

	rec, err := c.fetch(ctx)
	if errors.Is(err, statuspage.ErrSessionExpired) {
		c.authenticated = false
		logrus.Warn("session cookie expired, logging in again")

		if err := c.source.Login(ctx); err != nil {
			return nil, err
		}
		c.authenticated = true

		rec, err = c.fetch(ctx)
		if errors.Is(err, statuspage.ErrSessionExpired) {
			c.authenticated = false
			return nil, errors.Wrap(err, "still unauthenticated after re-login")
		}
	}

	return rec, err
}

func (c *Collector) fetch(ctx context.Context) (*statuspage.Record, error) {
	page, err := c.source.StatusPage(ctx)
	if err != nil {
		return nil, err
	}
	return statuspage.Parse(page, time.Now())
}

// Run performs an immediate first cycle, then one cycle per interval
// until ctx is done. The delay between cycles is fixed regardless of
// how long a cycle took. Only a session-limit refusal ends the loop;
// every other cycle error is logged and the next tick proceeds.
func (c *Collector) Run(ctx context.Context) error {
	log := logrus.WithField("context", "collect")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		start := time.Now()
		err := c.cycle(ctx)
		if errors.Is(err, hubone.ErrSessionLimit) {
			return err
		}
		if err != nil {
			log.WithError(err).Error("collection failed")
		}
		log.WithField("duration", time.Since(start)).Info("collection cycle finished")

		timer.Reset(c.interval)
	}
}

func (c *Collector) cycle(ctx context.Context) error {
	rec, err := c.CollectOnce(ctx)
	if err != nil {
		return err
	}

	if err := c.sink.WritePoint(Measurement, time.Now().UTC(), rec.Fields()); err != nil {
		return errors.Wrap(err, "forward to sink")
	}
	return nil
}
