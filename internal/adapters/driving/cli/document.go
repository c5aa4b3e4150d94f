package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

var (
	documentTickers []string
	documentPeriod  string
	documentJSON    bool
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"documents", "doc"},
	Short:   "Manage indexed documents",
	Long:    `List or remove indexed filings.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document and its chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentListCmd.Flags().StringSliceVarP(&documentTickers, "ticker", "t", nil, "only documents of these tickers")
	documentListCmd.Flags().StringVarP(&documentPeriod, "period", "p", "", "only documents of this period")
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errNotConfigured("index service")
	}

	for _, t := range documentTickers {
		if !domain.ValidTicker(t) {
			return domain.NewValidationError("invalid ticker %q", t)
		}
	}

	docs, err := indexService.ListDocuments(cmd.Context(), domain.NewFilter(documentTickers, documentPeriod))
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if documentJSON {
		return writeJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %s\n", d.ID)
		cmd.Printf("    %s %s", strings.ToUpper(d.Ticker), d.Period)
		if d.FilingType != "" {
			cmd.Printf(" (%s)", d.FilingType)
		}
		cmd.Printf(", %d pages, %d chunks\n", d.Pages, d.Chunks)
		if d.Title != "" {
			cmd.Printf("    Title: %s\n", d.Title)
		}
		if d.SourceURL != "" {
			cmd.Printf("    URL: %s\n", d.SourceURL)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errNotConfigured("index service")
	}

	n, err := indexService.DeleteDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	cmd.Printf("Removed %s (%d chunks)\n", args[0], n)
	return nil
}
