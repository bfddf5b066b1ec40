package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/compliance-cli/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Summarise recent assessments",
	Long:  "Computes assessment statistics for the lookback window. With --send the digest is posted to the configured webhook; scheduling is left to cron.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("digest"); err != nil {
			return err
		}

		days, _ := cmd.Flags().GetInt("days")
		if days == 0 {
			days = cfg.Digest.LookbackDays
		}
		send, _ := cmd.Flags().GetBool("send")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := digest.NewCollector(st).Collect(ctx, time.Now(), time.Duration(days)*24*time.Hour)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), digest.Summary(stats))
		}

		if send {
			return digest.NewNotifier(cfg.Digest.WebhookURL).Send(ctx, stats)
		}
		return nil
	},
}

func init() {
	digestCmd.Flags().Int("days", 0, "lookback window in days (default from config)")
	digestCmd.Flags().Bool("send", false, "post the digest to digest.webhook_url")
	digestCmd.Flags().Bool("json", false, "print the statistics as JSON")
	rootCmd.AddCommand(digestCmd)
}
