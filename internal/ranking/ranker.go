package ranking

import (
	"sort"
	"strings"

	"github.com/campusclubs/club-engine/internal/storage"
)

// Filters holds the browse-screen filter inputs for a ranking pass.
type Filters struct {
	// Search keeps clubs whose name or description contains this text,
	// case-insensitively. Empty disables the stage.
	Search string
	// Categories keeps clubs whose category is in this set. Empty disables
	// the stage.
	Categories []string
	// Tags is the manual tag filter. It drives SelectedTagsScore and, when
	// non-empty, takes over relevance ordering in SortDefault.
	Tags []string
	// HiddenClubIDs are excluded unconditionally before any other stage.
	HiddenClubIDs []string
	// Sort selects the ordering. Zero value means SortDefault.
	Sort SortMode
}

// Rank filters and orders clubs for display. Pipeline: hidden exclusion,
// search text, category filter, scoring, stable sort. The input slice is
// never mutated; an empty result is valid.
func Rank(clubs []storage.Club, filters Filters, preferenceTags []string) []ScoredClub {
	filtered := make([]storage.Club, 0, len(clubs))

	hidden := make(map[string]struct{}, len(filters.HiddenClubIDs))
	for _, id := range filters.HiddenClubIDs {
		hidden[id] = struct{}{}
	}

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	categories := foldSet(filters.Categories)

	for _, club := range clubs {
		if _, ok := hidden[club.ID]; ok {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(club.Name), search) &&
			!strings.Contains(strings.ToLower(club.Description), search) {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[strings.ToLower(club.Category)]; !ok {
				continue
			}
		}
		filtered = append(filtered, club)
	}

	scored := make([]ScoredClub, len(filtered))
	for i, club := range filtered {
		scored[i] = ScoreClub(club, filters.Tags, preferenceTags)
	}

	mode := filters.Sort
	if mode == "" {
		mode = SortDefault
	}

	// Stable sort so equal-key clubs keep their incoming order.
	sort.SliceStable(scored, func(i, j int) bool {
		return less(scored[i], scored[j], filters.Tags, mode)
	})

	return scored
}
