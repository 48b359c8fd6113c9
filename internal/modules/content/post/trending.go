package post

import (
	"sort"
	"time"
)

const (
	// DefaultTrendingLimit is used when no limit is requested.
	DefaultTrendingLimit = 5
	recencyWindowDays    = 30
	defaultPriority      = 5
)

const (
	recencyWeight  = 0.6
	priorityWeight = 0.3
	featuredBoost  = 0.1
	breakingBoost  = 0.2
)

// Score rates a post for the trending list. Recency decays linearly to zero
// over thirty days; editorial priority (1-10, default 5) and the featured and
// breaking flags add fixed weight.
func Score(p Post, now time.Time) float64 {
	ageDays := now.Sub(p.PublishedAt).Hours() / 24

	recency := 0.0
	if ageDays <= recencyWindowDays {
		recency = (recencyWindowDays - ageDays) / recencyWindowDays
	}

	priority := float64(defaultPriority)
	if p.Priority != nil {
		priority = *p.Priority
	}
	priority = min(max(priority, 1), 10)

	score := recency*recencyWeight + priority/10*priorityWeight
	if p.Featured {
		score += featuredBoost
	}
	if p.Breaking {
		score += breakingBoost
	}
	return max(score, 0)
}

// Trending ranks posts by Score, dropping those that score zero.
func Trending(posts []Post, now time.Time, limit int) []Post {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}

	type scored struct {
		post  Post
		score float64
	}
	ranked := make([]scored, 0, len(posts))
	for _, p := range posts {
		if s := Score(p, now); s > 0 {
			ranked = append(ranked, scored{post: p, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Post, len(ranked))
	for i, r := range ranked {
		out[i] = r.post
	}
	return out
}
