/*
Package mailqueue delivers queued scheduled_emails rows and fills the queue for
newsletters and blog notifications.

SendPending is meant to be called over and over, usually by an external
scheduler hitting the send-pending endpoint. Each call does one bounded pass and
returns. A row that fails stays unsent and is retried on every later pass.
*/
package mailqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/utils"
)

// ErrStoreNotConfigured means there is no queue to read.
var ErrStoreNotConfigured = errors.New("mail queue store is not configured")

type Store interface {
	FetchPendingEmails(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledEmail, error)
	MarkEmailSent(ctx context.Context, id int, at time.Time) (bool, error)
	MarkEmailFailed(ctx context.Context, id int, reason string) error
}

type Report struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type BatchSender struct {
	store  Store
	mailer email.Sender
	cfg    config.MailQueueConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewBatchSender(store Store, mailer email.Sender, cfg config.MailQueueConfig) *BatchSender {
	cfg.FetchLimit = utils.OrDefault(cfg.FetchLimit, 50)
	cfg.BatchSize = utils.OrDefault(cfg.BatchSize, 5)
	return &BatchSender{
		store:  store,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
		sleep:  utils.SleepContext,
	}
}

/*
SendPending fetches up to FetchLimit due rows and sends them in batches of
BatchSize. The emails in a batch are sent concurrently; the next batch starts
only after every send in the current one has finished and BatchDelay has
passed. There is no delay after the last batch.

Canceling ctx stops the pass before the next batch. The report covers what was
attempted up to then.
*/
func (s *BatchSender) SendPending(ctx context.Context) (Report, error) {
	var report Report
	if s.store == nil {
		return report, ErrStoreNotConfigured
	}

	log := logging.ExtractLogger(ctx)
	start := time.Now()

	pending, err := s.store.FetchPendingEmails(ctx, s.now(), s.cfg.FetchLimit)
	if err != nil {
		return report, oops.New(err, "failed to fetch pending emails")
	}
	if len(pending) == 0 {
		log.Debug().Msg("No pending emails")
		return report, nil
	}
	log.Info().Int("count", len(pending)).Msg("Sending pending emails")

	batches := utils.Chunk(pending, s.cfg.BatchSize)
	for i, batch := range batches {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				log.Info().Int("remaining", len(batches)-i).Msg("Stopping send pass early")
				break
			}
		}

		sent, failed := s.sendBatch(ctx, batch)
		report.Sent += sent
		report.Failed += failed
	}

	metrics.QueueProcessed(report.Sent, report.Failed, time.Since(start))
	log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("Finished sending pending emails")

	return report, nil
}

func (s *BatchSender) sendBatch(ctx context.Context, batch []*models.ScheduledEmail) (sent, failed int) {
	ok := make([]bool, len(batch))

	var wg sync.WaitGroup
	for i, e := range batch {
		wg.Add(1)
		go func(i int, e *models.ScheduledEmail) {
			defer wg.Done()
			ok[i] = s.sendOne(ctx, e)
		}(i, e)
	}
	wg.Wait()

	for _, success := range ok {
		if success {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func (s *BatchSender) sendOne(ctx context.Context, e *models.ScheduledEmail) (success bool) {
	log := logging.ExtractLogger(ctx).With().
		Int("email id", e.ID).
		Str("type", string(e.EmailType)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logging.LogPanicValue(&log, r, "Panic while sending queued email")
			success = false
		}
	}()

	if err := s.mailer.Send(ctx, e.RecipientEmail, e.Subject, e.HTMLContent); err != nil {
		log.Warn().Err(err).Int("attempts", e.Attempts+1).Msg("Queued email failed")
		if markErr := s.store.MarkEmailFailed(ctx, e.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("Failed to record email failure")
		}
		return false
	}
	metrics.EmailSent(string(e.EmailType))

	marked, err := s.store.MarkEmailSent(ctx, e.ID, s.now())
	if err != nil {
		// The email went out; it will go out again on the next pass.
		log.Error().Err(err).Msg("Sent email but failed to mark it sent")
	} else if !marked {
		log.Warn().Msg("Email was already marked sent by another pass")
	}
	return true
}
