package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusclubs/club-engine/cmd/clubctl/ui"
	"github.com/campusclubs/club-engine/internal/ranking"
	"github.com/campusclubs/club-engine/internal/storage"
)

var (
	rankSearch     string
	rankCategories []string
	rankTags       []string
	rankSort       string
	rankUserID     string
	rankLimit      int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank clubs by tag relevance",
	Long: `Ranks the stored clubs the way the discovery screen does: hidden
clubs excluded, search and category filters applied, then ordered by tag
overlap with the selected tags or the user's saved preferences.`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVarP(&rankSearch, "search", "s", "", "search text (name or description)")
	rankCmd.Flags().StringSliceVar(&rankCategories, "category", nil, "category filter (repeatable)")
	rankCmd.Flags().StringSliceVarP(&rankTags, "tag", "t", nil, "tag filter (repeatable)")
	rankCmd.Flags().StringVar(&rankSort, "sort", "default", "sort mode: default, name, or category")
	rankCmd.Flags().StringVarP(&rankUserID, "user", "u", "", "user ID for preference-aware ranking")
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "n", 0, "max results (0 = all)")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.Error("%v", err)
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	defer db.Close()

	clubRepo := storage.NewClubRepository(db)
	clubs, err := clubRepo.List(ctx)
	if err != nil {
		ui.Error("Load clubs: %v", err)
		return err
	}

	var preferenceTags []string
	if rankUserID != "" {
		profileRepo := storage.NewProfileRepository(db)
		preferenceTags, err = profileRepo.GetPreferenceTags(ctx, rankUserID)
		if err != nil {
			ui.Warning("Could not load preferences for %s, ranking without them", rankUserID)
			preferenceTags = nil
		}
	}

	ranked := ranking.Rank(clubs, ranking.Filters{
		Search:     rankSearch,
		Categories: rankCategories,
		Tags:       rankTags,
		Sort:       ranking.SortMode(rankSort),
	}, preferenceTags)

	if rankLimit > 0 && len(ranked) > rankLimit {
		ranked = ranked[:rankLimit]
	}

	if len(ranked) == 0 {
		ui.Info("No clubs matched.")
		return nil
	}

	ui.Section("Ranked Clubs")
	for i, sc := range ranked {
		line := fmt.Sprintf("%2d. %s", i+1, ui.Bold(sc.Name))
		if sc.Category != "" {
			line += fmt.Sprintf(" (%s)", sc.Category)
		}
		ui.Info("%s", line)
		if len(sc.Tags) > 0 {
			ui.Info("    tags: %s", ui.Accent(strings.Join(sc.Tags, ", ")))
		}
		if len(rankTags) > 0 || len(preferenceTags) > 0 {
			ui.Verbose("    selected=%d preference=%d match=%v",
				sc.SelectedTagsScore, sc.UserPreferenceScore, sc.IsMatchForUser)
		}
	}
	return nil
}
