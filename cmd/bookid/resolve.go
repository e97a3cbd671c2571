package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/bookbot/internal/bootstrap"
	"github.com/kirillkom/bookbot/internal/core/domain"
)

func newResolveCmd() *cobra.Command {
	var (
		userID string
		hint   string
	)

	cmd := &cobra.Command{
		Use:   "resolve <review text>",
		Short: "Resolve one review and print the outcome",
		Example: `  bookid resolve "Finally finished Solaris by Lem, the ocean still haunts me"
  bookid resolve --hint "Мастер и Маргарита" "перечитал в третий раз"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cmd.Context(), cfg, "bookid")
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			defer app.Close()

			review := domain.Review{
				ID:        uuid.NewString(),
				UserID:    userID,
				Text:      strings.Join(args, " "),
				Hint:      hint,
				CreatedAt: time.Now().UTC(),
			}
			outcome, err := app.Resolver.Resolve(cmd.Context(), review)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "cli", "user id the review is attributed to")
	cmd.Flags().StringVar(&hint, "hint", "", "title hint passed to the extractor")
	return cmd
}
