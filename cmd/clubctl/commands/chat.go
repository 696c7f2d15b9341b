package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusclubs/club-engine/cmd/clubctl/ui"
	"github.com/campusclubs/club-engine/internal/chat"
	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/storage"
)

var chatUserID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive AI chat about campus clubs",
	Long: `Starts an interactive chat session. The assistant answers questions
about clubs by querying the local database, and personalizes recommendations
when a user ID with saved preferences is given.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "", "user ID for personalized recommendations")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	logger := newLogger(cfg)

	if cfg.GenAI.APIKey == "" {
		ui.Error("GEMINI_API_KEY is not set")
		return fmt.Errorf("missing api key")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		ui.Error("%v", err)
		return err
	}
	defer db.Close()

	clubRepo := storage.NewClubRepository(db)
	profileRepo := storage.NewProfileRepository(db)

	registry := chat.NewRegistry(logger, clubRepo, profileRepo, cfg.Ranking.ToolResultLimit)
	client := genai.NewClient(genai.ClientConfig{
		BaseURL: cfg.GenAI.BaseURL,
		Model:   cfg.GenAI.Model,
		APIKey:  cfg.GenAI.APIKey,
	})
	orchestrator := chat.NewOrchestrator(logger, client, registry, chat.Config{
		Timeout:        cfg.Chat.Timeout,
		FallbackAnswer: cfg.Chat.FallbackAnswer,
	})

	var cachedTags []string
	if chatUserID != "" {
		tags, err := profileRepo.GetPreferenceTags(ctx, chatUserID)
		if err != nil {
			ui.Warning("Could not load preferences for %s, continuing without them", chatUserID)
		} else {
			cachedTags = tags
			ui.Verbose("Loaded %d preference tags", len(tags))
		}
	}

	ui.Section("Club Chat")
	ui.Info("Ask about campus clubs. Type %s to leave.", ui.Bold("exit"))
	ui.Newline()

	var history []chat.Message
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print(ui.Bold("you> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			ui.Newline()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		spin := ui.NewSpinner("Thinking...")
		spin.Start()
		reply, err := orchestrator.Converse(ctx, history, line, chatUserID, cachedTags)
		spin.Stop()
		if err != nil {
			ui.Error("%v", err)
			continue
		}

		fmt.Printf("%s %s\n\n", ui.Accent("club-bot>"), reply)

		history = append(history,
			chat.Message{Text: line, IsUser: true},
			chat.Message{Text: reply, IsUser: false},
		)
	}
}
