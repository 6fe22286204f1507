package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/equestrolabs/leadgen-cli/internal/campaign"
	"github.com/equestrolabs/leadgen-cli/internal/model"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Run and inspect campaigns",
	Long:  "A campaign runs one category across several areas into its own tab, only inside the daily send window.",
}

// -- campaign run --

var campaignRunCmd = &cobra.Command{
	Use:   "run <campaign-id>",
	Short: "Run every area of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initLeadEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		force, _ := cmd.Flags().GetBool("force")
		result, err := env.Runner.RunCampaign(ctx, args[0], force)
		if err != nil {
			return eris.Wrap(err, "campaign run")
		}
		if result.Status == model.CampaignSkipped {
			fmt.Fprintln(os.Stderr, result.Message)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// -- campaign list --

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and configured campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := campaign.Load(cfg.Campaign.DefinitionsFile)
		if err != nil {
			return eris.Wrap(err, "campaign list")
		}
		formatCampaignList(os.Stdout, reg.List())
		return nil
	},
}

func init() {
	campaignRunCmd.Flags().Bool("force", false, "run even outside the send window")

	campaignCmd.AddCommand(campaignRunCmd)
	campaignCmd.AddCommand(campaignListCmd)
	rootCmd.AddCommand(campaignCmd)
}

// formatCampaignList writes a tabular list of campaigns to w.
func formatCampaignList(out io.Writer, campaigns []model.Campaign) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tAREAS\tTAB\tHOURS")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----\t---\t-----")

	for _, c := range campaigns {
		hours := "default"
		if c.StartHour != 0 || c.EndHour != 0 {
			hours = fmt.Sprintf("%02d-%02d", c.StartHour, c.EndHour)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			c.Category,
			strings.Join(c.Areas, "; "),
			c.Tab,
			hours,
		)
	}
	_ = w.Flush()
}
