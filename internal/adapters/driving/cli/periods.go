package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var periodsJSON bool

var periodsCmd = &cobra.Command{
	Use:   "periods [ticker...]",
	Short: "List indexed tickers and their periods",
	RunE:  runPeriods,
}

func init() {
	periodsCmd.Flags().BoolVar(&periodsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(periodsCmd)
}

func runPeriods(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errNotConfigured("index service")
	}

	avail, err := indexService.Availability(cmd.Context())
	if err != nil {
		return fmt.Errorf("availability: %w", err)
	}

	if len(args) > 0 {
		selected := make(map[string][]string, len(args))
		for _, t := range args {
			t = strings.ToUpper(t)
			if periods, ok := avail[t]; ok {
				selected[t] = periods
			}
		}
		avail = selected
	}

	if periodsJSON {
		return writeJSON(cmd, avail)
	}

	if len(avail) == 0 {
		cmd.Println("Nothing indexed yet. Run 'finsight index <corpus>' first.")
		return nil
	}

	tickers := make([]string, 0, len(avail))
	for t := range avail {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		cmd.Printf("  %-8s %s\n", t, strings.Join(avail[t], ", "))
	}
	return nil
}
