package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "synthcore"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Dynamic indicator synthesis validation core",
		Version: version,
		Long: `synthcore validates candidate trading indicators against a battery of
statistical gates (IC, deflated Sharpe, PBO, walk-forward, orthogonality)
and decides when a new indicator should be synthesised.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-error logging")

	// Accept snake_case flag spellings from older tooling.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newTriggerCmd())
	rootCmd.AddCommand(newServeCmd())

	cobra.OnInitialize(func() {
		if quiet, _ := rootCmd.PersistentFlags().GetBool("quiet"); quiet {
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
