package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cream-quant/synthcore/internal/config"
	"github.com/cream-quant/synthcore/internal/trigger"
)

func newTriggerCmd() *cobra.Command {
	var conditionsPath string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Evaluate the indicator-generation trigger",
		Long: `Reads TriggerConditions from a JSON file and reports whether a new
indicator should be synthesised, with the per-condition breakdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(conditionsPath)
			if err != nil {
				return fmt.Errorf("read conditions: %w", err)
			}
			var conditions trigger.Conditions
			if err := json.Unmarshal(raw, &conditions); err != nil {
				return fmt.Errorf("parse conditions: %w", err)
			}

			decision := trigger.Evaluate(conditions, cfg.Trigger)
			log.Info().Bool("should_trigger", decision.ShouldTrigger).Msg(decision.Summary)
			for _, reason := range decision.Reasons {
				log.Info().Msg(reason)
			}

			encoded, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&conditionsPath, "conditions", "", "Path to TriggerConditions JSON (required)")
	cmd.MarkFlagRequired("conditions")

	return cmd
}
