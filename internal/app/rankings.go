package app

import (
	"sort"
	"time"

	"contest-service/internal/domain"
)

// buildRanking reduces raw attempts to each user's best attempt and orders
// the board: score desc, then who got there earlier, then user id.
func buildRanking(contestID int64, attempts []domain.Attempt, now time.Time) domain.Ranking {
	best := make(map[int64]domain.Attempt)
	for _, a := range attempts {
		current, ok := best[a.UserID]
		if !ok || better(a, current) {
			best[a.UserID] = a
		}
	}

	ordered := make([]domain.Attempt, 0, len(best))
	for _, a := range best {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return better(ordered[i], ordered[j])
	})

	entries := make([]domain.RankingEntry, 0, len(ordered))
	for i, a := range ordered {
		entries = append(entries, domain.RankingEntry{
			Rank:           i + 1,
			UserID:         a.UserID,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
			Percentage:     a.Percentage(),
			CompletedAt:    a.CompletedAt,
		})
	}
	return domain.Ranking{ContestID: contestID, Entries: entries, UpdatedAt: now}
}

func better(a, b domain.Attempt) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	return a.UserID < b.UserID
}
