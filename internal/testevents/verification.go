package testevents

import (
	"fmt"
)

// verifyLeaderboard checks the served board against the generated plan:
// one row per athlete, dense ranks, non-increasing scores, and order that
// agrees with each athlete's best rep count.
func verifyLeaderboard(lb Leaderboard, attempts []Attempt) error {
	best := expectedBest(attempts)
	if len(lb.Entries) != len(best) {
		return fmt.Errorf("leaderboard has %d entries, want %d", len(lb.Entries), len(best))
	}
	seen := make(map[string]bool, len(lb.Entries))
	for i, e := range lb.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if seen[e.AthleteID] {
			return fmt.Errorf("athlete %s listed twice", e.AthleteID)
		}
		seen[e.AthleteID] = true
		if _, ok := best[e.AthleteID]; !ok {
			return fmt.Errorf("unexpected athlete %s", e.AthleteID)
		}
		if i == 0 {
			continue
		}
		prev := lb.Entries[i-1]
		if e.BestScoreNorm > prev.BestScoreNorm {
			return fmt.Errorf("leaderboard not sorted: rank %d outscores rank %d", e.Rank, prev.Rank)
		}
		// clamped scores tie at the cap, so only strict score gaps are checked
		if e.BestScoreNorm < prev.BestScoreNorm && best[e.AthleteID] > best[prev.AthleteID] {
			return fmt.Errorf("athlete %s (best %d reps) ranked below %s (best %d reps)",
				e.AthleteID, best[e.AthleteID], prev.AthleteID, best[prev.AthleteID])
		}
	}
	return nil
}
