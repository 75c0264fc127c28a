package storage

import (
	"time"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// Classify derives a memory's freshness classification from last_accessed
// and status (spec.md §4.4):
//
//	fresh        last_accessed within 30 days and status=fresh
//	needs_review 30-90 days since last_accessed, or explicitly marked
//	outdated     more than 90 days since last_accessed, or explicitly marked
//	archived     passthrough
func Classify(m cortexmodels.Memory, now time.Time) cortexmodels.Freshness {
	if m.Status == cortexmodels.StatusArchived {
		return cortexmodels.FreshnessArchived
	}
	if m.Status == cortexmodels.StatusNeedsReview {
		return cortexmodels.FreshnessNeedsReview
	}
	if m.Status == cortexmodels.StatusOutdated {
		return cortexmodels.FreshnessOutdated
	}

	if m.LastAccessed == nil {
		return classifyByAge(m.CreatedAt, now)
	}
	return classifyByAge(*m.LastAccessed, now)
}

func classifyByAge(since time.Time, now time.Time) cortexmodels.Freshness {
	age := now.Sub(since)
	switch {
	case age <= 30*24*time.Hour:
		return cortexmodels.FreshnessFresh
	case age <= 90*24*time.Hour:
		return cortexmodels.FreshnessNeedsReview
	default:
		return cortexmodels.FreshnessOutdated
	}
}
