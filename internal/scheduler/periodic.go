package scheduler

import (
	"fmt"

	"converse_backend/platform/config"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring scheduler entries, currently only the
// slot-offer expiry sweep.
type Periodic struct {
	scheduler *asynq.Scheduler
}

// NewPeriodic creates the periodic task registrar.
func NewPeriodic(cfg config.SchedulerConfig) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)
	if _, err := scheduler.Register("@every 5m", NewOfferExpiryTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: scheduler}, nil
}

// Run blocks until Shutdown is called.
func (p *Periodic) Run() error {
	return p.scheduler.Run()
}

// Shutdown stops the registrar.
func (p *Periodic) Shutdown() {
	p.scheduler.Shutdown()
}
