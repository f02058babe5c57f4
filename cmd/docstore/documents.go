package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	partitionKey string
	etag         string
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Read a document by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coll, cleanup, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		doc, ok, err := coll.Get(cmd.Context(), args[0], partitionKey)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("document %q not found", args[0])
		}
		return printDocument(doc)
	},
}

var putCmd = &cobra.Command{
	Use:   "put <id> [json-value]",
	Short: "Insert or overwrite a document",
	Long: `Upserts a document. The value is the second argument or, when omitted,
read from stdin. With --etag the write is conditional and fails when the
stored document has moved on.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value []byte
		if len(args) == 2 {
			value = []byte(args[1])
		} else {
			var err error
			value, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read value from stdin: %w", err)
			}
		}
		if !json.Valid(value) {
			return fmt.Errorf("value is not valid JSON")
		}
		coll, cleanup, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		doc, err := coll.Upsert(cmd.Context(), types.RawDocument{
			ID:           args[0],
			PartitionKey: partitionKey,
			Etag:         etag,
			Value:        json.RawMessage(value),
		})
		if err != nil {
			return err
		}
		return printDocument(doc)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coll, cleanup, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return coll.Delete(cmd.Context(), args[0], partitionKey, etag)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, putCmd, deleteCmd} {
		cmd.Flags().StringVarP(&partitionKey, "partition", "p", "", "partition key")
	}
	putCmd.Flags().StringVar(&etag, "etag", "", "require the stored etag to match")
	deleteCmd.Flags().StringVar(&etag, "etag", "", "require the stored etag to match")
}

// printDocument writes one document in the selected output format.
func printDocument(doc types.RawDocument) error {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(documentForOutput(doc))
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		out, err := json.MarshalIndent(documentForOutput(doc), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}

// documentForOutput decodes the raw value so output shows the payload as
// structured data instead of an escaped JSON string.
func documentForOutput(doc types.RawDocument) map[string]any {
	var value any
	_ = json.Unmarshal(doc.Value, &value)
	out := map[string]any{
		"id":    doc.ID,
		"etag":  doc.Etag,
		"value": value,
	}
	if doc.PartitionKey != "" {
		out["partitionKey"] = doc.PartitionKey
	}
	return out
}
