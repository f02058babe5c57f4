package main

import (
	"fmt"

	"github.com/arthur-debert/docstore/docstore/sqlite"
	"github.com/arthur-debert/docstore/docstore/store"
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store %q: %w", dbPath, err)
		}
		defer be.Close()
		server := store.NewServer(be, store.WithLogger(newLogger()))
		db, err := server.OpenDatabase(cmd.Context(), databaseID)
		if err != nil {
			return err
		}
		ids, err := db.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}
