package ranking

import (
	"context"
	"sort"
	"strings"

	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/storage"
)

// BuildTagIndex derives the universe of distinct tags from club records.
// Identity is case-insensitive with first-seen casing preserved for display.
// The result is sorted case-insensitively, with a case-sensitive tiebreak.
// Clubs with missing or empty tag sets are tolerated.
func BuildTagIndex(clubs []storage.Club) []string {
	seen := make(map[string]string)
	for _, club := range clubs {
		for _, tag := range club.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			folded := strings.ToLower(tag)
			if _, ok := seen[folded]; !ok {
				seen[folded] = tag
			}
		}
	}

	index := make([]string, 0, len(seen))
	for _, tag := range seen {
		index = append(index, tag)
	}
	sort.Slice(index, func(i, j int) bool {
		return foldCompare(index[i], index[j]) < 0
	})
	return index
}

// TagCatalog abstracts the authoritative tag catalog source.
type TagCatalog interface {
	ListCatalog(ctx context.Context) ([]string, error)
}

// ClubLister abstracts the club source used for index derivation.
type ClubLister interface {
	List(ctx context.Context) ([]storage.Club, error)
}

// CatalogIndex returns the tag index, preferring the authoritative catalog
// and falling back to derivation from clubs only when the catalog fetch
// fails. An empty catalog is authoritative and yields an empty index.
// Both sources failing yields an empty index, not an error; callers render
// the empty state themselves.
func CatalogIndex(ctx context.Context, logger *observability.Logger, catalog TagCatalog, clubs ClubLister) []string {
	if catalog != nil {
		tags, err := catalog.ListCatalog(ctx)
		if err == nil {
			sorted := make([]string, len(tags))
			copy(sorted, tags)
			sort.Slice(sorted, func(i, j int) bool {
				return foldCompare(sorted[i], sorted[j]) < 0
			})
			return sorted
		}
		logger.Warn().Err(err).Msg("tag catalog unavailable, deriving index from clubs")
	}

	if clubs != nil {
		all, err := clubs.List(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("club listing failed, returning empty tag index")
			return []string{}
		}
		return BuildTagIndex(all)
	}

	return []string{}
}
