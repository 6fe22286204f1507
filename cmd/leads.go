package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/export"
	"github.com/equestrolabs/leadgen-cli/internal/leadstore"
	"github.com/equestrolabs/leadgen-cli/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Read, export and import lead tables",
}

// openLeadBackend validates the table settings and opens the backend.
func openLeadBackend(ctx context.Context) (leadstore.Backend, error) {
	if err := cfg.Validate("leads"); err != nil {
		return nil, err
	}
	return initBackend(ctx)
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the leads in a tab",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		backend, err := openLeadBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close() //nolint:errcheck

		tab, _ := cmd.Flags().GetString("tab")
		if tab == "" {
			tab = cfg.Sheets.DefaultTab
		}
		leads, err := openTable(backend, tab).ReadAll(ctx)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		}
		if len(leads) == 0 {
			fmt.Fprintf(os.Stderr, "No leads in %q.\n", tab)
			return nil
		}
		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export lead tabs to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		backend, err := openLeadBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close() //nolint:errcheck

		out, _ := cmd.Flags().GetString("out")
		tabs, _ := cmd.Flags().GetStringSlice("tab")
		if len(tabs) == 0 {
			tabs, err = backend.ListTabs(ctx)
			if err != nil {
				return eris.Wrap(err, "leads export: list tabs")
			}
		}

		sheets := make([]export.Sheet, 0, len(tabs))
		total := 0
		for _, tab := range tabs {
			leads, err := openTable(backend, tab).ReadAll(ctx)
			if err != nil {
				return eris.Wrapf(err, "leads export: read %q", tab)
			}
			sheets = append(sheets, export.Sheet{Tab: tab, Leads: leads})
			total += len(leads)
		}
		if err := export.SaveLeads(out, sheets...); err != nil {
			return err
		}

		zap.L().Info("leads exported",
			zap.String("file", out),
			zap.Int("tabs", len(sheets)),
			zap.Int("leads", total),
		)
		return nil
	},
}

// -- leads import --

var leadsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Append leads from an xlsx workbook, skipping known businesses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, _ := cmd.Flags().GetString("in")
		sheet, _ := cmd.Flags().GetString("sheet")
		leads, err := export.ReadLeads(in, sheet)
		if err != nil {
			return err
		}

		backend, err := openLeadBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close() //nolint:errcheck

		tab, _ := cmd.Flags().GetString("tab")
		if tab == "" {
			tab = cfg.Sheets.DefaultTab
		}
		added, skipped, err := importLeads(ctx, openTable(backend, tab), leads, time.Now())
		if err != nil {
			return eris.Wrap(err, "leads import")
		}

		zap.L().Info("leads imported",
			zap.String("file", in),
			zap.String("tab", tab),
			zap.Int("added", added),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().String("tab", "", "tab to read (default from config)")
	leadsListCmd.Flags().Bool("json", false, "print leads as JSON")

	leadsExportCmd.Flags().String("out", "", "xlsx file to write (required)")
	leadsExportCmd.Flags().StringSlice("tab", nil, "tabs to export (default: every tab)")
	_ = leadsExportCmd.MarkFlagRequired("out")

	leadsImportCmd.Flags().String("in", "", "xlsx file to read (required)")
	leadsImportCmd.Flags().String("sheet", "", "sheet to read (default: first sheet)")
	leadsImportCmd.Flags().String("tab", "", "tab to append to (default from config)")
	_ = leadsImportCmd.MarkFlagRequired("in")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsImportCmd)
	rootCmd.AddCommand(leadsCmd)
}

// importTable is the part of a lead table an import writes to.
type importTable interface {
	EnsureTable(ctx context.Context) error
	LoadDedupKeys(ctx context.Context, area string) (map[string]struct{}, error)
	Append(ctx context.Context, lead model.Lead) (int, error)
}

// importLeads appends leads whose business name is not yet stored for their
// area. Missing IDs, status, flags and dates are filled in as sourcing would.
func importLeads(ctx context.Context, table importTable, leads []model.Lead, now time.Time) (added, skipped int, err error) {
	if err := table.EnsureTable(ctx); err != nil {
		return 0, 0, err
	}

	known := map[string]map[string]struct{}{}
	for _, l := range leads {
		key := model.DedupKey(l.BusinessName)
		if key == "" {
			skipped++
			continue
		}
		area := strings.ToLower(strings.TrimSpace(l.Area))
		keys, ok := known[area]
		if !ok {
			keys, err = table.LoadDedupKeys(ctx, l.Area)
			if err != nil {
				return added, skipped, err
			}
			known[area] = keys
		}
		if _, dup := keys[key]; dup {
			skipped++
			continue
		}

		l.Row = 0
		if l.ID == "" {
			l.ID = uuid.NewString()[:8]
		}
		if l.Status == "" {
			l.Status = model.StatusSourced
		}
		if l.SMSSent == "" {
			l.SMSSent = model.FlagNo
		}
		if l.EmailSent == "" {
			l.EmailSent = model.FlagNo
		}
		if l.DateAdded == "" {
			l.DateAdded = now.Format(model.DateLayout)
		}
		if _, err := table.Append(ctx, l); err != nil {
			return added, skipped, err
		}
		keys[key] = struct{}{}
		added++
	}
	return added, skipped, nil
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tBUSINESS\tAREA\tSTATUS\tSTEP\tOWNER\tPHONE\tNEXT")
	_, _ = fmt.Fprintln(w, "---\t--------\t----\t------\t----\t-----\t-----\t----")

	for _, l := range leads {
		name := l.BusinessName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			l.Row,
			name,
			l.Area,
			l.Status,
			l.DripStep,
			l.OwnerName,
			l.BestPhone,
			l.NextContact,
		)
	}
	_ = w.Flush()
}
