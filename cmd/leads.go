package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/leads"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List, export and sync leads",
	Long:  "Commands for working with the leads derived from stored assessments.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		filter, err := leadFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		formatLeadsList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

// -- leads status --

var leadsStatusCmd = &cobra.Command{
	Use:   "status <lead-id> <status>",
	Short: "Set a lead's follow-up status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		status := model.LeadStatus(strings.ToLower(args[1]))
		if !status.Valid() {
			return eris.Errorf("unknown status %q (new, contacted, qualified, converted, lost)", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpdateLeadStatus(ctx, args[0], status); err != nil {
			return eris.Wrap(err, "leads status")
		}
		zap.L().Info("lead status updated", zap.String("lead_id", args[0]), zap.String("status", string(status)))
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		if format != "csv" && format != "xlsx" {
			return eris.Errorf("unknown format %q (csv, xlsx)", format)
		}
		if format == "xlsx" && out == "" {
			return eris.New("--out is required for xlsx exports")
		}

		filter, err := leadFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads export")
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if format == "xlsx" {
			err = leads.WriteXLSX(w, list)
		} else {
			err = leads.WriteCSV(w, list)
		}
		if err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.Int("leads", len(list)), zap.String("format", format))
		return nil
	},
}

// -- leads sync --

var leadsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create Salesforce Leads for leads not yet synced",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		filter, err := leadFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads sync")
		}

		res, err := leads.NewSyncer(sf, st).SyncAll(ctx, list)
		fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d, failed %d\n", res.Created, res.Skipped, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd, leadsSyncCmd} {
		c.Flags().String("since", "", "only leads submitted on or after this date (YYYY-MM-DD)")
		c.Flags().String("until", "", "only leads submitted on or before this date (YYYY-MM-DD)")
		c.Flags().StringSlice("states", nil, "only leads operating in any of these states")
		c.Flags().String("min-score", "", "minimum overall percentage")
		c.Flags().String("max-score", "", "maximum overall percentage")
		c.Flags().String("status", "", "filter by lead status")
		c.Flags().Int("limit", 0, "max number of leads (0 for no limit)")
	}
	leadsListCmd.Flags().Bool("json", false, "print leads as JSON")
	leadsExportCmd.Flags().String("format", "csv", "export format (csv, xlsx)")
	leadsExportCmd.Flags().String("out", "", "output file (default stdout, required for xlsx)")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsStatusCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsSyncCmd)
	rootCmd.AddCommand(leadsCmd)
}

// leadFilterFromFlags maps the shared filter flags onto the query parameters
// leads.ParseFilter understands.
func leadFilterFromFlags(flags *pflag.FlagSet) (store.LeadFilter, error) {
	q := url.Values{}
	for flag, param := range map[string]string{
		"since":     "since",
		"until":     "until",
		"min-score": "min_score",
		"max-score": "max_score",
		"status":    "status",
	} {
		if v, _ := flags.GetString(flag); v != "" {
			q.Set(param, v)
		}
	}
	if states, _ := flags.GetStringSlice("states"); len(states) > 0 {
		q.Set("states", strings.Join(states, ","))
	}
	if limit, _ := flags.GetInt("limit"); limit != 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return leads.ParseFilter(q)
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, list []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tEMAIL\tSTATES\tSCORE\tRATING\tSTATUS\tSUBMITTED\tSALESFORCE")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t------\t-----\t------\t------\t---------\t----------")

	for _, l := range list {
		company := l.CompanyName
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			company,
			l.Email,
			strings.Join(l.OperatingStates, ","),
			l.OverallPercentage,
			leads.Rating(l.OverallRiskTier),
			l.Status,
			l.SubmittedAt.UTC().Format("2006-01-02 15:04"),
			l.SalesforceID,
		)
	}
	_ = w.Flush()
}
