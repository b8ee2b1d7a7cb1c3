package server

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/cache"
	"github.com/liamashdown/polysignal/internal/metrics"
)

const pruneTimeout = time.Minute

// Job is a unit of scheduled background work
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler runs background jobs on cron schedules
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// NewScheduler creates a stopped scheduler
func NewScheduler(log *logrus.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// AddJob registers job. Schedules use the standard five-field syntax or
// descriptors such as "@hourly" and "@every 30m".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.run(job)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"schedule": schedule,
		"job":      job.Name(),
	}).Info("Job registered")
	return nil
}

func (s *Scheduler) run(job Job) {
	s.log.WithField("job", job.Name()).Debug("Running job")
	if err := job.Run(context.Background()); err != nil {
		s.log.WithError(err).WithField("job", job.Name()).Error("Job failed")
		return
	}
	s.log.WithField("job", job.Name()).Debug("Job completed")
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// PruneJob removes expired cache entries
type PruneJob struct {
	store cache.Store
	log   *logrus.Logger
}

// NewPruneJob creates a PruneJob for store
func NewPruneJob(store cache.Store, log *logrus.Logger) *PruneJob {
	return &PruneJob{store: store, log: log}
}

// Name implements Job
func (j *PruneJob) Name() string { return "cache_prune" }

// Run implements Job
func (j *PruneJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	removed, err := j.store.Prune(ctx)
	if err != nil {
		return err
	}
	metrics.RecordCachePrune(removed)
	j.log.WithField("removed", removed).Info("Pruned expired cache entries")
	return nil
}
