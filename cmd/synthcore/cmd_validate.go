package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cream-quant/synthcore/internal/pipeline"
)

func newValidateCmd() *cobra.Command {
	var (
		requestPath string
		outputPath  string
		nTrials     int
		seed        uint64
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the validation pipeline on a candidate indicator",
		Long: `Reads a ValidationRequest from a JSON file, runs all five gates, and
prints the report in its canonical wire encoding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(requestPath)
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}

			var req pipeline.ValidationRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			if nTrials > 0 {
				req.NTrials = nTrials
			}
			if seed != 0 {
				req.Seed = seed
			}

			report, err := pipeline.Run(context.Background(), &req)
			if err != nil {
				return fmt.Errorf("validation: %w", err)
			}

			log.Info().Str("indicator", report.IndicatorID).
				Bool("passed", report.OverallPassed).
				Int("gates_passed", report.GatesPassed).
				Msg("validation complete")
			for _, rec := range report.Recommendations {
				log.Info().Msg(rec)
			}

			encoded, err := report.MarshalCanonical()
			if err != nil {
				return err
			}
			if outputPath != "" {
				if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				log.Info().Str("path", outputPath).Msg("report written")
				return nil
			}
			fmt.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&requestPath, "request", "", "Path to ValidationRequest JSON (required)")
	cmd.Flags().StringVar(&outputPath, "out", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVar(&nTrials, "trials", 0, "Override the request's trial count")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Override the PBO permutation seed")
	cmd.MarkFlagRequired("request")

	return cmd
}
