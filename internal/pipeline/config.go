package pipeline

import "time"

// Config tunes the pipeline's pools, retry budgets and delays. Zero values
// fall back to the defaults below.
type Config struct {
	// DeployWorkers bounds concurrent submissions; chain RPC calls are the
	// bottleneck, so this stays small.
	DeployWorkers int
	// ConfirmWorkers bounds concurrent receipt polls; polls are cheap and
	// numerous.
	ConfirmWorkers int

	// SubmitMaxAttempts bounds automatic retries of a deployment job on
	// transient errors.
	SubmitMaxAttempts int
	// SubmitRetryBackoff is the base of the exponential submission backoff.
	SubmitRetryBackoff time.Duration

	// GasSafetyMarginPercent inflates the gas estimate when the caller did
	// not supply a gas limit.
	GasSafetyMarginPercent uint64

	// ConfirmInitialDelay is the wait before the first receipt poll.
	ConfirmInitialDelay time.Duration
	// ConfirmPollInterval is the fixed delay between receipt polls.
	ConfirmPollInterval time.Duration
	// ConfirmMaxRetries bounds the number of requeued polls per transaction.
	ConfirmMaxRetries int

	// SweepSchedule is the cron spec of the unconfirmed-deployment sweep.
	SweepSchedule string
	// SweepAfter is how long a processing record must be untouched before
	// the sweep re-arms its monitor.
	SweepAfter time.Duration

	// EventBuffer sizes the terminal-event channel.
	EventBuffer int
}

func (c Config) withDefaults() Config {
	if c.DeployWorkers <= 0 {
		c.DeployWorkers = 4
	}
	if c.ConfirmWorkers <= 0 {
		c.ConfirmWorkers = 16
	}
	if c.SubmitMaxAttempts <= 0 {
		c.SubmitMaxAttempts = 3
	}
	if c.SubmitRetryBackoff <= 0 {
		c.SubmitRetryBackoff = 2 * time.Second
	}
	if c.GasSafetyMarginPercent == 0 {
		c.GasSafetyMarginPercent = 20
	}
	if c.ConfirmInitialDelay <= 0 {
		c.ConfirmInitialDelay = 15 * time.Second
	}
	if c.ConfirmPollInterval <= 0 {
		c.ConfirmPollInterval = 30 * time.Second
	}
	if c.ConfirmMaxRetries <= 0 {
		c.ConfirmMaxRetries = 20
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "@every 5m"
	}
	if c.SweepAfter <= 0 {
		c.SweepAfter = 10 * time.Minute
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	return c
}
