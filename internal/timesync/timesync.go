// Package timesync verifies the wall clock against SNTP before the secure
// channel comes up; certificate validation needs a plausible clock. Failure
// is tolerated: after the retry budget the device proceeds with an
// unverified clock.
package timesync

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAttempts      = 3
	defaultRetryInterval = 2 * time.Second
)

// Syncer queries an SNTP host with a bounded retry budget.
type Syncer struct {
	host          string
	attempts      int
	retryInterval time.Duration
	log           *logrus.Entry

	// Query performs one SNTP round trip; replaceable in tests.
	Query func(host string) (time.Time, error)
}

func NewSyncer(host string, attempts int, logger *logrus.Logger) *Syncer {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Syncer{
		host:          host,
		attempts:      attempts,
		retryInterval: defaultRetryInterval,
		Query:         ntp.Time,
		log:           logger.WithField("component", "timesync"),
	}
}

// Sync returns the network time, or an error once the budget is exhausted.
// Callers log the error and continue; time sync is best-effort.
func (s *Syncer) Sync() (time.Time, error) {
	var synced time.Time
	attempt := 0
	op := func() error {
		attempt++
		t, err := s.Query(s.host)
		if err != nil {
			s.log.WithError(err).WithField("attempt", attempt).Warn("time sync attempt failed")
			return err
		}
		synced = t
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryInterval), uint64(s.attempts-1))
	if err := backoff.Retry(op, policy); err != nil {
		return time.Time{}, fmt.Errorf("time sync after %d attempts: %w", attempt, err)
	}

	s.log.WithField("offset", time.Until(synced).Round(time.Millisecond)).Info("clock verified")
	return synced, nil
}
