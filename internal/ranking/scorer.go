// Package ranking computes tag-overlap relevance scores and ranked club
// lists. All functions are pure: inputs are never mutated and repeated calls
// with the same inputs produce identical output.
package ranking

import (
	"strings"

	"github.com/campusclubs/club-engine/internal/storage"
)

// SortMode selects the ranking key used to order clubs.
type SortMode string

const (
	// SortDefault orders by tag-overlap relevance, highest first.
	SortDefault SortMode = "default"
	// SortAlphabetical orders by club name, case-insensitively.
	SortAlphabetical SortMode = "name"
	// SortCategory orders by category then name, case-insensitively.
	SortCategory SortMode = "category"
)

// ScoredClub is a transient projection of a club with its relevance scores.
// It is recomputed on every ranking pass and never persisted.
type ScoredClub struct {
	storage.Club

	// SelectedTagsScore counts overlaps with the active manual tag filter.
	SelectedTagsScore int
	// UserPreferenceScore counts overlaps with the user's preference tags.
	UserPreferenceScore int
	// IsMatchForUser reports whether the club shares at least one tag with
	// the user's preference tags. Surfaced to the chat model by tools.
	IsMatchForUser bool
}

// Score counts how many of the club's tags appear in selectedTags and in
// preferenceTags, case-insensitively. Overlap is a plain count: no weighting
// by tag rarity and no normalization by the club's tag-set size.
func Score(club storage.Club, selectedTags, preferenceTags []string) (selectedScore, preferenceScore int) {
	if len(club.Tags) == 0 {
		return 0, 0
	}

	selected := foldSet(selectedTags)
	preferred := foldSet(preferenceTags)

	for _, tag := range club.Tags {
		folded := strings.ToLower(tag)
		if _, ok := selected[folded]; ok {
			selectedScore++
		}
		if _, ok := preferred[folded]; ok {
			preferenceScore++
		}
	}
	return selectedScore, preferenceScore
}

// ScoreClub returns the full scored projection for a single club.
func ScoreClub(club storage.Club, selectedTags, preferenceTags []string) ScoredClub {
	selectedScore, preferenceScore := Score(club, selectedTags, preferenceTags)
	return ScoredClub{
		Club:                club,
		SelectedTagsScore:   selectedScore,
		UserPreferenceScore: preferenceScore,
		IsMatchForUser:      preferenceScore > 0,
	}
}

// less reports whether a should precede b under the given sort mode.
// Equal keys return false so a stable sort preserves input order.
func less(a, b ScoredClub, selectedTags []string, mode SortMode) bool {
	switch mode {
	case SortAlphabetical:
		return foldCompare(a.Name, b.Name) < 0
	case SortCategory:
		if c := foldCompare(a.Category, b.Category); c != 0 {
			return c < 0
		}
		return foldCompare(a.Name, b.Name) < 0
	default:
		// Relevance: manual tag filter takes precedence over stored
		// preferences when active. Ties fall through to name order.
		if len(selectedTags) > 0 {
			if a.SelectedTagsScore != b.SelectedTagsScore {
				return a.SelectedTagsScore > b.SelectedTagsScore
			}
		} else {
			if a.UserPreferenceScore != b.UserPreferenceScore {
				return a.UserPreferenceScore > b.UserPreferenceScore
			}
		}
		return foldCompare(a.Name, b.Name) < 0
	}
}

// foldCompare compares two strings case-insensitively, falling back to a
// case-sensitive comparison so equal-fold strings still order totally.
func foldCompare(a, b string) int {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return strings.Compare(la, lb)
	}
	return strings.Compare(a, b)
}

// foldSet builds a case-folded membership set.
func foldSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = struct{}{}
	}
	return set
}
