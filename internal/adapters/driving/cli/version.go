package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long: `Print the finsight version.

With --verbose the Go runtime and the configured index backend and
models are printed as well.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("finsight version %s\n", version)
		if !verbose {
			return
		}
		cmd.Printf("go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if settingsService == nil {
			return
		}
		settings, err := settingsService.Get()
		if err != nil {
			return
		}
		cmd.Printf("index:     %s\n", settings.Index.Backend)
		cmd.Printf("embedding: %s\n", orUnset(string(settings.Embedding.Provider), settings.Embedding.Model))
		cmd.Printf("llm:       %s\n", orUnset(string(settings.LLM.Provider), settings.LLM.Model))
	},
}

// orUnset joins provider and model, or reports "not configured".
func orUnset(provider, model string) string {
	if provider == "" {
		return "not configured"
	}
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
