package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	dates []time.Time
	err   error
}

func (g *recordingGenerator) GenerateDailyTrips(_ context.Context, date time.Time) (*models.GenerationResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.dates = append(g.dates, date)
	return &models.GenerationResult{Date: date.Format("2006-01-02"), Generated: 2}, nil
}

func TestRunGenerateTripsNow_GeneratesDaysAhead(t *testing.T) {
	generator := &recordingGenerator{}
	service := NewCronService(generator, tripCfg, testLogger())
	service.now = func() time.Time { return time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC) }

	results, err := service.RunGenerateTripsNow(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "2025-03-11", results[0].Date)
	assert.Equal(t, "2025-03-13", results[2].Date)
	assert.Len(t, generator.dates, 3)
}

func TestRunGenerateTripsNow_StopsOnError(t *testing.T) {
	generator := &recordingGenerator{err: errors.New("db down")}
	service := NewCronService(generator, tripCfg, testLogger())

	results, err := service.RunGenerateTripsNow(context.Background())

	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestCronService_StartAndStatus(t *testing.T) {
	service := NewCronService(&recordingGenerator{}, tripCfg, testLogger())

	require.NoError(t, service.Start())
	defer service.Stop()

	status := service.GetJobStatus()
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.JobCount)
	require.Len(t, status.Jobs, 1)
	assert.False(t, status.Jobs[0].NextRun.IsZero())
}

func TestCronService_InvalidSchedule(t *testing.T) {
	cfg := tripCfg
	cfg.GenerationCron = "every morning"
	service := NewCronService(&recordingGenerator{}, cfg, testLogger())

	err := service.Start()

	assert.Error(t, err)
	assert.Zero(t, service.GetJobStatus().JobCount)
}
