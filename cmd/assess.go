package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/leads"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

var assessCmd = &cobra.Command{
	Use:   "assess <submission.json>...",
	Short: "Score submission files against the question bank",
	Long:  "Scores one or more JSON submissions concurrently and prints the results. With --save the results and their leads are written to the store.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		if format != "table" && format != "json" {
			return eris.Errorf("unknown format %q (table, json)", format)
		}
		if err := cfg.Validate("assess"); err != nil {
			return err
		}

		reg, b, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		e, err := initEngine(b)
		if err != nil {
			return err
		}

		outcomes, err := scoreFiles(ctx, e, reg, args, cfg.Batch.MaxConcurrency)
		if err != nil {
			return err
		}

		if save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			saveOutcomes(ctx, st, outcomes)
		}

		if format == "json" {
			err = writeOutcomesJSON(cmd.OutOrStdout(), outcomes)
		} else {
			formatOutcomes(cmd.OutOrStdout(), outcomes)
		}
		if err != nil {
			return err
		}

		var failed int
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("assess: %d of %d submissions failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	assessCmd.Flags().Bool("save", false, "persist results and leads to the store")
	assessCmd.Flags().String("format", "table", "output format (table, json)")
	rootCmd.AddCommand(assessCmd)
}

// assessOutcome is the result of scoring one submission file.
type assessOutcome struct {
	Path        string                  `json:"path"`
	Submission  model.Submission        `json:"-"`
	Result      *model.AssessmentResult `json:"result,omitempty"`
	Lead        *model.Lead             `json:"-"`
	Diagnostics engine.Diagnostics      `json:"diagnostics"`
	Err         error                   `json:"-"`
	Error       string                  `json:"error,omitempty"`
}

type submissionFile struct {
	BankVersion string `json:"bank_version"`
	model.Submission
}

// scoreFiles scores every path with bounded concurrency. Outcomes keep the
// input order; a failing file never stops the others. Per-file failures are
// recorded on the outcome; the returned error is set only when ctx ends the
// batch early.
func scoreFiles(ctx context.Context, e *engine.Engine, reg *bank.Registry, paths []string, concurrency int) ([]assessOutcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]assessOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		g.Go(func() error {
			o := &outcomes[i]
			o.Path = path
			if err := gctx.Err(); err != nil {
				o.setErr(err)
				return nil
			}

			sub, b, err := readSubmission(path, reg)
			if err != nil {
				o.setErr(err)
				return nil
			}
			o.Submission = sub

			result, diag, err := e.Compute(b, sub)
			if err != nil {
				o.setErr(err)
				return nil
			}
			o.Result = result
			o.Diagnostics = diag
			o.Lead = leads.FromResult(sub, result, e.Classifier(), e.IssueFloor())

			if !diag.Empty() {
				zap.L().Warn("submission has data-quality issues",
					zap.String("path", path),
					zap.Strings("unknown_questions", diag.UnknownQuestions),
					zap.Int("unknown_options", len(diag.UnknownOptions)),
					zap.Strings("duplicate_answers", diag.DuplicateAnswers),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, eris.Wrap(err, "assess: score files")
	}
	return outcomes, eris.Wrap(ctx.Err(), "assess: score files")
}

func (o *assessOutcome) setErr(err error) {
	o.Err = err
	o.Error = err.Error()
	zap.L().Error("assessment failed", zap.String("path", o.Path), zap.Error(err))
}

func readSubmission(path string, reg *bank.Registry) (model.Submission, *bank.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Submission{}, nil, eris.Wrapf(err, "read %s", path)
	}
	var f submissionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Submission{}, nil, eris.Wrapf(err, "parse %s", path)
	}

	b := reg.Current()
	if f.BankVersion != "" {
		var ok bool
		if b, ok = reg.Get(f.BankVersion); !ok {
			return model.Submission{}, nil, eris.Errorf("%s: unknown bank version %s", path, f.BankVersion)
		}
	}
	return f.Submission, b, nil
}

// saveOutcomes stores every scored outcome. A store failure marks that
// outcome failed.
func saveOutcomes(ctx context.Context, st store.Store, outcomes []assessOutcome) {
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			continue
		}
		if err := st.SaveSubmission(ctx, o.Result, o.Lead); err != nil {
			o.setErr(eris.Wrapf(err, "save %s", o.Path))
		}
	}
}

func writeOutcomesJSON(out io.Writer, outcomes []assessOutcome) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// formatOutcomes writes a summary table, then the category breakdown and
// priority actions of each scored submission.
func formatOutcomes(out io.Writer, outcomes []assessOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tID\tCOMPANY\tSCORE\tRATING\tERROR")
	_, _ = fmt.Fprintln(w, "----\t--\t-------\t-----\t------\t-----")
	for _, o := range outcomes {
		if o.Result == nil {
			_, _ = fmt.Fprintf(w, "%s\t\t\t\t\t%s\n", o.Path, o.Error)
			continue
		}
		r := o.Result
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\t%s\n",
			o.Path, truncateID(r.ID), r.CompanyName, r.OverallPercentage, leads.Rating(r.OverallRiskTier), o.Error)
	}
	_ = w.Flush()

	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s\n", o.Path)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, cs := range o.Result.CategoryScores {
			_, _ = fmt.Fprintf(w, "  %s\t%d/%d\t%.1f%%\t%s\n",
				cs.Name, cs.RawScore, cs.RawMax, cs.Percentage, leads.Rating(cs.RiskTier))
		}
		_ = w.Flush()
		for _, a := range o.Result.PriorityActions {
			_, _ = fmt.Fprintf(out, "  - %s\n", a)
		}
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
