package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
)

// NewSetupCmd fetches a question set from the trivia API and saves it for later play.
func NewSetupCmd(configPath *string) *cobra.Command {
	var req domain.SetupRequest
	cmd := &cobra.Command{
		Use:   "setup <quiz-id>",
		Short: "Fetch and persist a question set for the saved source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}

			deps, err := buildService(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			req.QuizID = args[0]
			questions, err := deps.service.SetupQuiz(ctx, req)
			if err != nil {
				return err
			}
			log.Printf("quiz %s ready with %d questions", req.QuizID, len(questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "display title (defaults to the quiz id)")
	cmd.Flags().StringVar(&req.Category, "category", "any", "trivia category id or name")
	cmd.Flags().IntVar(&req.Count, "count", 0, "number of questions (0 uses the configured default)")
	cmd.Flags().IntVar(&req.TimerSeconds, "timer", 0, "seconds per question (0 uses the configured default)")
	return cmd
}
