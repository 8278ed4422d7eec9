package domain

import (
	"strings"
)

// MaxStars is the ceiling of the review confidence scale
const MaxStars = 4

const (
	filledStar = "★"
	emptyStar  = "☆"
)

// reviewStatusStars is checked in order; the first phrase contained in the
// lowercased review status decides the rating.
var reviewStatusStars = []struct {
	phrase string
	stars  int
}{
	{"practice guideline", 4},
	{"reviewed by expert panel", 3},
	{"criteria provided, multiple submitters, no conflicts", 2},
	{"criteria provided, single submitter", 1},
	{"criteria provided, conflicting", 1},
}

// StarsFromReviewStatus maps a free-text review status to 0-4 stars.
// Missing or unrecognized statuses score 0.
func StarsFromReviewStatus(reviewStatus string) int {
	norm := strings.ToLower(strings.TrimSpace(reviewStatus))
	if norm == "" {
		return 0
	}
	for _, entry := range reviewStatusStars {
		if strings.Contains(norm, entry.phrase) {
			return entry.stars
		}
	}
	return 0
}

// StarGlyphs renders n filled and MaxStars-n empty stars
func StarGlyphs(n int) string {
	if n < 0 {
		n = 0
	}
	if n > MaxStars {
		n = MaxStars
	}
	return strings.Repeat(filledStar, n) + strings.Repeat(emptyStar, MaxStars-n)
}

// RenderStarRating renders the persisted rating, e.g. "★★★☆ (reviewed by expert panel)".
func RenderStarRating(reviewStatus string) string {
	label := strings.TrimSpace(reviewStatus)
	if label == "" {
		label = "Unknown"
	}
	return StarGlyphs(StarsFromReviewStatus(reviewStatus)) + " (" + label + ")"
}
