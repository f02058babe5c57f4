package main

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/docstore/types"
	"github.com/spf13/cobra"
)

var (
	queryText   string
	queryParams []string
	pageSize    int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a paged query over the collection",
	Long: `Queries the collection. Without --text every document is returned. The
query text is the backend's native filter expression; for the SQLite
backend that is a SQL expression over (partition, id, etag, value), e.g.

  docstore query --text "json_extract(value, '$.kind') = :kind" --param kind=user`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := make(map[string]any, len(queryParams))
		for _, p := range queryParams {
			name, value, found := strings.Cut(p, "=")
			if !found {
				return fmt.Errorf("bad --param %q, want name=value", p)
			}
			params[name] = value
		}
		coll, cleanup, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		feed, err := coll.Query(cmd.Context(), types.Query{
			Text:         queryText,
			Parameters:   params,
			PartitionKey: partitionKey,
			PageSize:     pageSize,
		})
		if err != nil {
			return err
		}
		count := 0
		for feed.HasMore() {
			page, err := feed.ReadNext(cmd.Context())
			if err != nil {
				return err
			}
			for _, doc := range page {
				if err := printDocument(doc); err != nil {
					return err
				}
				count++
			}
		}
		fmt.Printf("%d documents\n", count)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryText, "text", "", "backend query expression")
	queryCmd.Flags().StringArrayVar(&queryParams, "param", nil, "query parameter name=value (repeatable)")
	queryCmd.Flags().IntVar(&pageSize, "page-size", 0, "items per page (0 = backend default)")
	queryCmd.Flags().StringVarP(&partitionKey, "partition", "p", "", "partition key hint")
}
