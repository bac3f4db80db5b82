package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/config"
	"github.com/smarttransit/busline-backend/internal/models"
)

// DailyTripGenerator generates the trips of one day
type DailyTripGenerator interface {
	GenerateDailyTrips(ctx context.Context, date time.Time) (*models.GenerationResult, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	generator DailyTripGenerator
	cfg       config.TripConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(generator DailyTripGenerator, cfg config.TripConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the trip generation job and starts the scheduler
func (s *CronService) Start() error {
	// second minute hour day month weekday
	_, err := s.cron.AddFunc(s.cfg.GenerationCron, s.generateTripsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule trip generation job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule":   s.cfg.GenerationCron,
		"days_ahead": s.cfg.GenerationDaysAhead,
	}).Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) generateTripsJob() {
	if _, err := s.RunGenerateTripsNow(context.Background()); err != nil {
		s.logger.WithError(err).Error("Trip generation job failed")
	}
}

// RunGenerateTripsNow generates trips for each of the next GenerationDaysAhead days
func (s *CronService) RunGenerateTripsNow(ctx context.Context) ([]*models.GenerationResult, error) {
	started := time.Now()
	today := s.now().In(s.cfg.Location())

	results := make([]*models.GenerationResult, 0, s.cfg.GenerationDaysAhead)
	for i := 1; i <= s.cfg.GenerationDaysAhead; i++ {
		result, err := s.generator.GenerateDailyTrips(ctx, today.AddDate(0, 0, i))
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	generated := 0
	for _, r := range results {
		generated += r.Generated
	}
	s.logger.WithFields(logrus.Fields{
		"days":        len(results),
		"generated":   generated,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Trip generation job finished")

	return results, nil
}

// JobStatus describes one scheduled job
type JobStatus struct {
	ID      cron.EntryID `json:"id"`
	NextRun time.Time    `json:"nextRun"`
	PrevRun time.Time    `json:"prevRun"`
}

// CronStatus summarises the scheduler
type CronStatus struct {
	Running  bool        `json:"running"`
	JobCount int         `json:"jobCount"`
	Jobs     []JobStatus `json:"jobs"`
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() CronStatus {
	entries := s.cron.Entries()

	jobs := make([]JobStatus, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, JobStatus{ID: entry.ID, NextRun: entry.Next, PrevRun: entry.Prev})
	}
	return CronStatus{
		Running:  len(entries) > 0,
		JobCount: len(entries),
		Jobs:     jobs,
	}
}
