package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the deck result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <content-id>",
	Short: "Drop the cached deck for one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteDeck(ctx, args[0]); err != nil {
			return eris.Wrap(err, "cache clear")
		}
		fmt.Printf("Cleared cached deck for %s\n", args[0])
		return nil
	},
}

var cacheExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Delete all expired cached decks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := st.DeleteExpiredDecks(ctx)
		if err != nil {
			return eris.Wrap(err, "cache expire")
		}
		fmt.Printf("Deleted %d expired decks\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExpireCmd)
	rootCmd.AddCommand(cacheCmd)
}
