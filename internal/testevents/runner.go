package testevents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// ErrDrainTimeout is returned when the service does not apply the events in time.
var ErrDrainTimeout = errors.New("events were not applied in time")

// Run executes the complete event test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting pulse event test",
		logger.String("baseURL", config.BaseURL),
		logger.String("workout", config.WorkoutID),
		logger.Int("athletes", len(config.Athletes)),
		logger.Int("attemptsPerAthlete", config.AttemptsPerAthlete),
		logger.Int("workers", config.Workers),
	)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	baseline, err := processedEvents(ctx, client)
	if err != nil {
		return stats, fmt.Errorf("service stats unavailable: %w", err)
	}

	attempts := plan(config)
	if err := createAttempts(ctx, client, config, attempts); err != nil {
		return stats, fmt.Errorf("attempt creation failed: %w", err)
	}
	stats.AttemptsCreated = len(attempts)

	// validation requires the result, so SUBMIT must drain before VALIDATE
	phases := []struct {
		name  string
		event func(Attempt) Event
	}{
		{"submit", submitEvent},
		{"validate", func(a Attempt) Event { return validateEvent(a, config.ValidatorID) }},
	}
	for _, phase := range phases {
		events := make([]Event, len(attempts))
		for i, a := range attempts {
			events[i] = phase.event(a)
		}
		accepted, failed := postEvents(ctx, client, config.Workers, events)
		stats.EventsSubmitted += len(events)
		stats.EventsAccepted += accepted
		stats.EventsFailed += failed
		baseline += accepted
		log.Info(ctx, "events posted",
			logger.String("phase", phase.name),
			logger.Int("accepted", accepted),
			logger.Int("failed", failed),
		)
		if err := waitForDrain(ctx, client, config, baseline); err != nil {
			return stats, fmt.Errorf("%s phase: %w", phase.name, err)
		}
	}

	lb, err := getLeaderboard(ctx, client, config)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(lb.Entries)

	if err := verifyLeaderboard(lb, attempts); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats, lb)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	return nil
}

// waitForDrain polls /stats until the workers have handled target events.
func waitForDrain(ctx context.Context, client *HTTPClient, config *Config, target int) error {
	deadline := time.Now().Add(config.DrainTimeout)
	interval := config.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	for {
		done, err := processedEvents(ctx, client)
		if err != nil {
			return err
		}
		if done >= target {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d", ErrDrainTimeout, done, target)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, lb Leaderboard) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("attemptsCreated", stats.AttemptsCreated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond),
	)
	for _, e := range lb.Entries[:min(len(lb.Entries), 10)] {
		log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("athlete", e.AthleteID),
			logger.Float64("score", e.BestScoreNorm),
		)
	}
}
