package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bookbot/internal/bootstrap"
	"github.com/kirillkom/bookbot/internal/core/domain"
)

func newISBNCmd() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "isbn <code>",
		Short: "Validate an ISBN and look it up",
		Example: `  bookid isbn 978-0-7475-3269-9
  bookid isbn --check 0-9752298-0-X`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := domain.NormalizeISBN(args[0])
			if !domain.ValidateISBN(code) {
				return fmt.Errorf("%q is not a valid ISBN-10 or ISBN-13", args[0])
			}
			if checkOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), code)
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cmd.Context(), cfg, "bookid")
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			defer app.Close()

			meta, err := app.Resolver.LookupISBN(cmd.Context(), code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), meta)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "only validate the checksum, no lookup")
	return cmd
}
