package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/registry"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Inspect and publish question banks",
	Long:  "Commands for validating question bank files and moving banks between YAML and Notion.",
}

// -- bank validate --

var bankValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a question bank file against the engine configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Bank.Path
		if len(args) == 1 {
			path = args[0]
		}

		b, err := fileBank(path)
		if err != nil {
			return err
		}
		if _, err := initEngine(b); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "bank %s OK: %d categories, %d questions (hash %s)\n",
			b.Version(), len(b.Categories()), b.Len(), b.Hash())
		return nil
	},
}

// -- bank show --

var bankShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured question bank",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := loadBank(cmd.Context())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "table":
			formatBank(cmd.OutOrStdout(), b)
			return nil
		case "yaml":
			out, err := bank.Marshal(b)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bank.File{
				Version:    b.Version(),
				FullScale:  b.FullScale(),
				Categories: b.Categories(),
				Questions:  b.Questions(),
			})
		default:
			return eris.Errorf("unknown format %q (table, yaml, json)", format)
		}
	},
}

// -- bank sync-notion --

var bankSyncNotionCmd = &cobra.Command{
	Use:   "sync-notion",
	Short: "Pull the question bank from Notion into a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		version, _ := cmd.Flags().GetString("version")
		if version == "" {
			version = notionVersion(time.Now())
		}

		client, err := initNotion()
		if err != nil {
			return err
		}
		base, err := fileBank(cfg.Bank.Path)
		if err != nil {
			return err
		}

		b, err := registry.LoadQuestionBank(ctx, client, cfg.Notion.QuestionDB, version,
			base.Categories(), bank.WithFullScale(base.FullScale()))
		if err != nil {
			return err
		}
		if _, err := initEngine(b); err != nil {
			return err
		}

		data, err := bank.Marshal(b)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", out)
		}

		zap.L().Info("bank synced from notion",
			zap.String("bank_version", b.Version()),
			zap.Int("questions", b.Len()),
			zap.String("out", out),
		)
		return nil
	},
}

// -- bank publish-notion --

var bankPublishNotionCmd = &cobra.Command{
	Use:   "publish-notion [path]",
	Short: "Publish a question bank file to the Notion question database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Bank.Path
		if len(args) == 1 {
			path = args[0]
		}

		b, err := fileBank(path)
		if err != nil {
			return err
		}
		client, err := initNotion()
		if err != nil {
			return err
		}

		res, err := registry.PublishQuestionBank(cmd.Context(), client, cfg.Notion.QuestionDB, b)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s: %d created, %d updated, %d deactivated\n",
			b.Version(), res.Created, res.Updated, res.Deactivated)
		return nil
	},
}

func init() {
	bankShowCmd.Flags().String("format", "table", "output format (table, yaml, json)")

	bankSyncNotionCmd.Flags().String("out", "bank.yaml", "file to write the bank to")
	bankSyncNotionCmd.Flags().String("version", "", "version label for the bank (default notion-<timestamp>)")

	bankCmd.AddCommand(bankValidateCmd)
	bankCmd.AddCommand(bankShowCmd)
	bankCmd.AddCommand(bankSyncNotionCmd)
	bankCmd.AddCommand(bankPublishNotionCmd)
	rootCmd.AddCommand(bankCmd)
}

// formatBank writes one line per question, grouped in category order.
func formatBank(out io.Writer, b *bank.Bank) {
	_, _ = fmt.Fprintf(out, "Bank %s (hash %s)\n\n", b.Version(), b.Hash())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tWEIGHT\tOPTIONS\tRULES\tQUESTION")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t-------\t-----\t--------")

	for _, c := range b.Categories() {
		for _, q := range b.Questions() {
			if q.Category != c.ID {
				continue
			}
			var rules string
			if q.Applicability != nil {
				rules = registry.FormatApplicability(q.Applicability)
			}
			if q.Conditional != nil {
				if rules != "" {
					rules += " "
				}
				rules += "if " + registry.FormatDependsOn(q.Conditional)
			}
			if q.Informational {
				rules = "informational"
			}

			text := q.Text
			if len(text) > 60 {
				text = text[:57] + "..."
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				q.ID, c.ID, q.Weight, len(q.Options), rules, text)
		}
	}
	_ = w.Flush()
}
