package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/bulk"
	"github.com/arthur-debert/docstore/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	batchSize int
	idField   string
)

var loadCmd = &cobra.Command{
	Use:   "load <file.ndjson>",
	Short: "Bulk import newline-delimited JSON documents",
	Long: `Streams a newline-delimited JSON file through the bulk pipeline. Each
line is one document value; the document id is taken from --id-field (or
generated when the field is missing).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		coll, cleanup, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		pipeline := bulk.New(coll.BulkExecutor(),
			bulk.WithBatchSize(batchSize),
			bulk.WithLogger(newLogger()))

		ctx := cmd.Context()
		submitted := 0
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(line, &fields); err != nil {
				pipeline.Abort()
				return fmt.Errorf("line %d: %w", submitted+1, err)
			}
			id := documentID(fields, idField)
			value := make([]byte, len(line))
			copy(value, line)
			err := pipeline.Submit(ctx, backend.Operation{
				Kind: backend.OpUpsert,
				Document: types.RawDocument{
					ID:           id,
					PartitionKey: partitionKey,
					Value:        value,
				},
			})
			if err != nil {
				return err
			}
			submitted++
		}
		if err := scanner.Err(); err != nil {
			pipeline.Abort()
			return fmt.Errorf("read input: %w", err)
		}
		if err := pipeline.Close(ctx); err != nil {
			return err
		}
		fmt.Printf("imported %d documents\n", submitted)
		return nil
	},
}

// documentID extracts the id field from a decoded line, generating one
// when the field is missing, empty, or not a string.
func documentID(fields map[string]json.RawMessage, field string) string {
	id := ""
	if raw, ok := fields[field]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return id
}

func init() {
	loadCmd.Flags().IntVar(&batchSize, "batch-size", bulk.DefaultBatchSize, "initial bulk batch size")
	loadCmd.Flags().StringVar(&idField, "id-field", "id", "JSON field holding the document id")
	loadCmd.Flags().StringVarP(&partitionKey, "partition", "p", "", "partition key for all imported documents")
}
