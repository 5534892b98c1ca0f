package mailqueue

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/luminagoods/site/src/jobs"
	"github.com/luminagoods/site/src/utils"
)

/*
RunWorker sends pending email every interval until the job is canceled. It is
off by default; the external scheduler calling the send-pending endpoint is
the usual trigger.

After a failed pass the worker waits with exponential backoff, capped at ten
times the interval, before trying again.
*/
func RunWorker(sender *BatchSender, interval time.Duration) *jobs.Job {
	if interval <= 0 {
		return jobs.Noop()
	}

	return jobs.Run("mail queue worker", func(job *jobs.Job) {
		log := job.Logger
		log.Info().Dur("interval", interval).Msg("Running mail queue worker")
		defer log.Info().Msg("Shutting down mail queue worker")

		b := &backoff.Backoff{
			Min:    interval,
			Max:    10 * interval,
			Factor: 2,
			Jitter: true,
		}

		timer := utils.MakeAutoResetTimer(job.Ctx, interval, true)
		for {
			select {
			case <-job.Canceled():
				return
			case _, ok := <-timer.C:
				if !ok {
					return
				}
			}

			err := func() (err error) {
				defer utils.RecoverPanicAsError(&err)
				_, err = sender.SendPending(job.Ctx)
				return err
			}()
			if err == nil {
				b.Reset()
				continue
			}

			wait := b.Duration()
			log.Error().Err(err).Dur("retry in", wait).Msg("Mail queue pass failed")
			if utils.SleepContext(job.Ctx, wait) != nil {
				return
			}
		}
	})
}
