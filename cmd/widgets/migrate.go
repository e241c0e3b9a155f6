package main

import (
	"fmt"

	"widgets/internal/db"
	"widgets/internal/widget"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the widgets schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the welcome widget into an empty store",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		seeded, err := db.Seed(cmd.Context(), &widget.Service{DB: gdb})
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if seeded {
			fmt.Fprintln(cmd.OutOrStdout(), "seeded welcome widget")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "store not empty, nothing seeded")
		}
		return nil
	},
}
