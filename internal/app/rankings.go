package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/ranking"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Leaderboard computes a ranked list on demand.
func (s *Service) Leaderboard(ctx context.Context, q ranking.Query) (types.Leaderboard, error) {
	var out types.Leaderboard
	start := time.Now()
	err := s.store.View(func(tx *repository.Tx) error {
		id, err := ranking.Resolve(tx, tx, q)
		if err != nil {
			return err
		}
		caller := ""
		if q.CallerID != "" {
			caller, _ = tx.AthleteOfUser(q.CallerID)
		}
		out = ranking.Compute(tx, id, s.now(), caller)
		return nil
	})
	if err != nil {
		return types.Leaderboard{}, err
	}
	metrics.RecordLeaderboardComputation("on_demand", float64(time.Since(start).Microseconds())/1000)
	s.logger.Debug(ctx, "leaderboard computed",
		logger.String("key", out.Identity.Key()),
		logger.Int("entries", len(out.Entries)),
	)
	return out, nil
}

// RecomputeAll replaces every materialized snapshot and pushes the new set
// to the configured sinks. It returns the number of snapshots stored.
// Sink failures are logged and counted but do not fail the recompute.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	var snapshots []types.Leaderboard
	start := time.Now()
	err := s.store.Update(func(tx *repository.Tx) error {
		tx.ClearSnapshots()
		now := s.now()
		ids := ranking.Identities(tx.Workouts(), tx.Gyms())
		snapshots = make([]types.Leaderboard, 0, len(ids))
		for _, id := range ids {
			lb := ranking.Compute(tx, id, now, "")
			tx.PutSnapshot(lb)
			snapshots = append(snapshots, lb)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordLeaderboardComputation("materialized", float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateSnapshotCount(len(snapshots))

	s.recMu.Lock()
	s.lastRecompute = s.now()
	s.lastSnapshots = len(snapshots)
	s.recMu.Unlock()

	for _, sink := range s.sinks {
		if err := sink.Export(ctx, snapshots); err != nil {
			metrics.RecordSnapshotSinkError(sink.Name())
			s.logger.Error(ctx, "snapshot export failed",
				logger.String("sink", sink.Name()),
				logger.Error(err),
			)
		}
	}
	s.logger.Info(ctx, "leaderboards materialized",
		logger.Int("snapshots", len(snapshots)),
		logger.Duration("took", time.Since(start)),
	)
	return len(snapshots), nil
}

// Snapshot returns a materialized leaderboard.
func (s *Service) Snapshot(_ context.Context, id types.Identity) (types.Leaderboard, error) {
	var out types.Leaderboard
	err := s.store.View(func(tx *repository.Tx) error {
		lb, ok := tx.Snapshot(id)
		if !ok {
			return model.NotFoundf("snapshot %s", id.Key())
		}
		out = lb
		return nil
	})
	return out, err
}

func isValidation(err error) bool {
	return errors.Is(err, model.ErrValidation)
}
