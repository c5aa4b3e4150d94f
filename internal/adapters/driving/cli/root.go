// Package cli implements the finsight command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

var verbose bool

// Services wired in by main. Commands report a configuration error when
// the service they need is nil.
var (
	answerService    driving.AnswerService
	retrievalService driving.RetrievalService
	indexService     driving.IndexService
	evalService      driving.EvalService
	settingsService  driving.SettingsService
	metricsHandler   http.Handler
	indexExtensions  []string
)

// commandStarted is set once argument validation has passed, so errors
// raised by cobra itself can be told apart from command failures.
var commandStarted bool

// Services aggregates the driving ports the commands call into.
type Services struct {
	Answer    driving.AnswerService
	Retrieval driving.RetrievalService
	Index     driving.IndexService
	Eval      driving.EvalService
	Settings  driving.SettingsService

	// Metrics serves the Prometheus exposition format; nil disables
	// "metrics serve".
	Metrics http.Handler

	// Extensions are the file extensions the index command picks up
	// when walking a corpus directory.
	Extensions []string
}

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Cited answers and model evaluation over financial filings",
	Long: `finsight indexes quarterly and annual filings, answers questions about them
with page and line citations, and evaluates chat models against reference
answers with an independent judge model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		commandStarted = true
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices wires the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	answerService = s.Answer
	retrievalService = s.Retrieval
	indexService = s.Index
	evalService = s.Eval
	settingsService = s.Settings
	metricsHandler = s.Metrics
	indexExtensions = s.Extensions
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Failures are printed to stderr as
// "error [kind]: message" and returned so main can exit non-zero.
func Execute() error {
	commandStarted = false
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

// printError writes err with its classification.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error [%s]: %v\n", errorKind(err), err)
}

// errorKind classifies err. Usage errors raised before a command runs
// count as validation failures.
func errorKind(err error) domain.ErrorKind {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if !commandStarted {
		return domain.KindValidation
	}
	return domain.KindOf(err)
}

// errNotConfigured reports a service main did not wire, usually because
// provider settings are missing.
func errNotConfigured(name string) error {
	return domain.NewError(domain.KindValidation, name,
		errors.New("not configured; run 'finsight settings show' to check provider settings"))
}
