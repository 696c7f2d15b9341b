package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusclubs/club-engine/cmd/clubctl/ui"
	"github.com/campusclubs/club-engine/internal/storage"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load clubs and quiz questions from a JSON file",
	Long: `Seeds the database from a JSON file containing club records and,
optionally, quiz questions with their tag-carrying options. Club tags are
also upserted into the tag catalog.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed JSON file (required)")
	seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

// seedDocument is the accepted seed file shape.
type seedDocument struct {
	Clubs     []seedClub             `json:"clubs"`
	Questions []storage.QuizQuestion `json:"questions,omitempty"`
}

type seedClub struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Tags        []string           `json:"tags"`
	ImageURL    string             `json:"imageUrl"`
	NextEvent   *storage.NextEvent `json:"nextEvent"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.Error("%v", err)
		return err
	}

	data, err := os.ReadFile(seedFile)
	if err != nil {
		ui.Error("Read seed file: %v", err)
		return err
	}

	var doc seedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		ui.Error("Parse seed file: %v", err)
		return err
	}
	if len(doc.Clubs) == 0 && len(doc.Questions) == 0 {
		ui.Warning("Seed file contains no clubs or questions")
		return nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	defer db.Close()

	clubRepo := storage.NewClubRepository(db)
	tagRepo := storage.NewTagRepository(db)

	ui.Section("Seed Database")

	if len(doc.Clubs) > 0 {
		bar := ui.NewProgressBar(int64(len(doc.Clubs)), "Seeding clubs")
		for _, sc := range doc.Clubs {
			club := &storage.Club{
				Name:        sc.Name,
				Description: sc.Description,
				Category:    sc.Category,
				Tags:        sc.Tags,
				ImageURL:    sc.ImageURL,
				NextEvent:   sc.NextEvent,
			}
			if err := clubRepo.Create(ctx, club); err != nil {
				bar.Finish()
				ui.Error("Create club %q: %v", sc.Name, err)
				return err
			}
			for _, tag := range club.Tags {
				if err := tagRepo.Upsert(ctx, tag); err != nil {
					ui.Verbose("Tag upsert %q failed: %v", tag, err)
				}
			}
			bar.Add(1)
		}
		bar.Finish()
		ui.Success("Seeded %d clubs", len(doc.Clubs))
	}

	if len(doc.Questions) > 0 {
		quizRepo := storage.NewQuizRepository(db)
		for i := range doc.Questions {
			if err := quizRepo.UpsertQuestion(ctx, &doc.Questions[i]); err != nil {
				ui.Error("Seed quiz question %q: %v", doc.Questions[i].Text, err)
				return err
			}
		}
		ui.Success("Seeded %d quiz questions", len(doc.Questions))
	}

	return nil
}
