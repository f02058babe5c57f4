package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/arthur-debert/docstore/docstore/retry"
	"github.com/arthur-debert/docstore/docstore/sqlite"
	"github.com/arthur-debert/docstore/docstore/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	dbPath       string
	databaseID   string
	collectionID string
	partitioned  bool
	format       string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "docstore",
	Short: "Docstore CLI - resilient document store operations",
	Long: `Docstore is a document/graph storage library with retry, optimistic
concurrency, and adaptive bulk batching over pluggable backends.

This CLI operates on a local SQLite-backed store. Configuration comes from
flags, a config file (--config), or DOCSTORE_* environment variables.

Examples:
  # Upsert a document
  docstore --db data.db put user-1 '{"name": "Ada"}'

  # Read it back
  docstore --db data.db get user-1

  # Bulk import newline-delimited JSON
  docstore --db data.db load users.ndjson`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "docstore.db", "path to the SQLite store file")
	rootCmd.PersistentFlags().StringVar(&databaseID, "database", store.DefaultID, "database id")
	rootCmd.PersistentFlags().StringVarP(&collectionID, "collection", "c", store.DefaultID, "collection id")
	rootCmd.PersistentFlags().BoolVar(&partitioned, "partitioned", false, "open the collection as backend-partitioned")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "output format: json|yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, flag := range []string{"db", "database", "collection", "partitioned", "format"} {
		_ = viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}
	viper.SetEnvPrefix("DOCSTORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(collectionsCmd)
}

// initConfig merges the optional config file into viper before commands
// read settings.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			cobra.CheckErr(fmt.Errorf("read config %q: %w", cfgFile, err))
		}
	}
	dbPath = viper.GetString("db")
	databaseID = viper.GetString("database")
	collectionID = viper.GetString("collection")
	partitioned = viper.GetBool("partitioned")
	format = viper.GetString("format")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openCollection opens the configured backend, database, and collection.
// The returned cleanup closes the backend.
func openCollection(cmd *cobra.Command) (*store.Collection, func(), error) {
	be, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %q: %w", dbPath, err)
	}
	server := store.NewServer(be,
		store.WithLogger(newLogger()),
		store.WithRetry(store.DefaultMaxAttempts, retry.Linear(50*time.Millisecond)))
	ctx := cmd.Context()
	db, err := server.OpenDatabase(ctx, databaseID)
	if err != nil {
		be.Close()
		return nil, nil, err
	}
	coll, err := db.OpenCollection(ctx, collectionID, partitioned)
	if err != nil {
		be.Close()
		return nil, nil, err
	}
	return coll, func() { _ = be.Close() }, nil
}
