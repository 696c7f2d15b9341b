package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/campusclubs/club-engine/cmd/clubctl/ui"
	"github.com/campusclubs/club-engine/internal/ranking"
	"github.com/campusclubs/club-engine/internal/storage"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tag universe",
	Long: `Lists every distinct tag known to the engine: the tag catalog when
available, otherwise derived from the stored clubs.`,
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	logger := newLogger(cfg)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	defer db.Close()

	index := ranking.CatalogIndex(ctx, logger,
		storage.NewTagRepository(db), storage.NewClubRepository(db))

	if len(index) == 0 {
		ui.Info("No tags found.")
		return nil
	}
	for _, tag := range index {
		ui.Info("%s", tag)
	}
	return nil
}
