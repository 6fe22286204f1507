package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/pipeline"
)

var (
	runArea     string
	runCategory string
	runTab      string
	runMax      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sourcing, enrichment and drip pass for an area and category",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initLeadEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		req := pipeline.RunRequest{
			Area:         runArea,
			Category:     runCategory,
			Tab:          runTab,
			MaxToProcess: runMax,
		}
		summary, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("area", summary.Area),
			zap.String("category", summary.Category),
			zap.Int("new_leads", summary.NewLeads),
			zap.Int("touch1_sent", summary.Touch1Sent),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().StringVar(&runArea, "area", "", "geographic area, e.g. \"Morgan Hill CA\" (required)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "business category, e.g. plumber (required)")
	runCmd.Flags().StringVar(&runTab, "tab", "", "lead table tab (default from config)")
	runCmd.Flags().IntVar(&runMax, "max", 0, "enrich at most this many leads (0 = no cap)")
	_ = runCmd.MarkFlagRequired("area")
	_ = runCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(runCmd)
}
