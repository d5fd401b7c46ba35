package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pft/internal/apperr"
	"pft/internal/config"
	"pft/internal/log"
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flags.configFile, "config", "", "TOML config file (overrides PFT_CONFIG)")
	f.StringVar(&flags.apiURL, "api-url", "", "API base URL (overrides PFT_API_URL)")
	f.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides PFT_LOG_LEVEL)")
	f.StringVarP(&flags.output, "output", "o", outputAuto, "output format: auto, table or json")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "write client metrics in Prometheus text format to this file on exit")
}

var flags struct {
	configFile  string
	apiURL      string
	logLevel    string
	output      string
	metricsFile string
}

// state is the per-process setup shared by commands.
var state struct {
	cfg    *config.Config
	logger *log.Logger
	app    *App
}

var rootCmd = &cobra.Command{
	Use:   "pft",
	Short: "Personal finance tracker client",
	Long: `pft talks to a personal finance API: record income and expense
transactions, organise them into categories, set monthly budgets and read
dashboard and report summaries.

Sessions are remembered in a local state file so a login survives between
invocations. Run 'pft serve-fake' for a local in-memory server to try it out.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, _ []string) error {
	LoadEnvFile()

	for env, v := range map[string]string{
		"PFT_CONFIG":    flags.configFile,
		"PFT_API_URL":   flags.apiURL,
		"PFT_LOG_LEVEL": flags.logLevel,
	} {
		if v != "" {
			os.Setenv(env, v)
		}
	}
	switch flags.output {
	case outputAuto, outputTable, outputJSON:
	default:
		return fmt.Errorf("invalid output format %q: must be auto, table or json", flags.output)
	}

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	state.cfg = cfg
	state.logger = SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// appFor returns the process App, building it on first use.
func appFor(cmd *cobra.Command) (*App, error) {
	if state.app != nil {
		return state.app, nil
	}
	app, err := NewApp(cmd.Context(), state.cfg, state.logger)
	if err != nil {
		return nil, err
	}
	state.app = app
	return app, nil
}

// signedIn builds the App and requires a settled, signed-in session.
func signedIn(cmd *cobra.Command) (*App, error) {
	app, err := appFor(cmd)
	if err != nil {
		return nil, err
	}
	if err := app.RequireUser(cmd.Context(), cmd.CommandPath()); err != nil {
		return nil, err
	}
	return app, nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if cerr := finish(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		return exitCode(err)
	}
	return 0
}

func finish() error {
	app := state.app
	state.app = nil
	if app == nil {
		return nil
	}
	if flags.metricsFile != "" {
		if err := prometheus.WriteToTextfile(flags.metricsFile, app.Registry); err != nil {
			app.Logger.Warn("Failed to write metrics file", log.FieldError, err, "path", flags.metricsFile)
		}
	}
	return app.Close()
}

func describe(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch {
	case ae.Kind == apperr.KindValidation && len(ae.Fields) > 0:
		return "invalid input: " + ae.Error()
	case ae.Kind == apperr.KindAuth && ae.Status == http.StatusUnauthorized && ae.Op != log.OpLogin:
		return err.Error() + " (session expired, run 'pft login')"
	}
	return err.Error()
}

// Exit codes by error kind.
const (
	exitError      = 1
	exitValidation = 2
	exitAuth       = 3
	exitNetwork    = 4
)

func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return exitValidation
	case apperr.KindAuth:
		return exitAuth
	case apperr.KindNetwork:
		return exitNetwork
	default:
		return exitError
	}
}
