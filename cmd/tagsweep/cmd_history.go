package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/tagsweep/internal/journal"
	"github.com/yairfalse/tagsweep/pkg/resource"
)

var (
	historyJournal string
	historyLimit   int
	historyOwner   string
	historyDiff    bool
)

// historyCmd shows recorded sweeps
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded sweeps",
	Long: `Show the sweeps recorded in the local journal, newest first.

With --owner, show the latest record of every resource attributed to that
owner instead. The owner is matched by its normalized alias.

With --diff, compare the records written by the two latest sweeps and show
resources that appeared, disappeared, or changed owner.`,
	Example: `  tagsweep history --journal tagsweep.db
  tagsweep history --limit 5
  tagsweep history --owner "Acme Corp"
  tagsweep history --diff`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyJournal, "journal", "", "Sweep history database path (default from config)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of sweeps to show (0 for all)")
	historyCmd.Flags().StringVar(&historyOwner, "owner", "", "Show resources recorded for this owner")
	historyCmd.Flags().BoolVar(&historyDiff, "diff", false, "Show ownership changes between the two latest sweeps")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	path := historyJournal
	if path == "" {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return errors.New("no journal configured (set journal.path or --journal)")
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	if historyOwner != "" {
		printOwner(cmd.OutOrStdout(), j.ByAlias(resource.NormalizeAlias(historyOwner)))
		return nil
	}

	if historyDiff {
		return runHistoryDiff(cmd, j)
	}

	runs, err := j.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func runHistoryDiff(cmd *cobra.Command, j *journal.Journal) error {
	runs, err := j.Runs(cmd.Context(), 2)
	if err != nil {
		return err
	}
	if len(runs) < 2 {
		fmt.Fprintln(cmd.OutOrStdout(), "Need at least two recorded sweeps to compare")
		return nil
	}

	from, to := runs[1].Revision, runs[0].Revision
	changes, err := j.DiffRuns(from, to)
	if err != nil {
		return err
	}
	printChanges(cmd.OutOrStdout(), from, to, changes)
	return nil
}

func printRuns(out io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No sweeps recorded")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REV\tSTARTED\tDURATION\tREGIONS\tLISTED\tWRITTEN\tSKIPPED\tFAILED\tFAILED REGIONS")
	for _, run := range runs {
		r := run.Report
		t := r.Totals()
		failed := "-"
		if names := r.FailedRegions(); len(names) > 0 {
			failed = fmt.Sprint(names)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			run.Revision,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			len(r.Regions), t.Listed, t.Written, t.Skipped, t.Failed, failed)
	}
	_ = w.Flush()
}

func printOwner(out io.Writer, states []journal.OwnershipState) {
	if len(states) == 0 {
		fmt.Fprintln(out, "No resources recorded for this owner")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE TYPE\tRESOURCE ID\tOWNER\tFIRST REV\tLAST REV")
	for _, s := range states {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			s.Record.ResourceType, s.Record.ResourceID, s.Record.OwnerName, s.FirstSeenRev, s.LastSeenRev)
	}
	_ = w.Flush()
}

func printChanges(out io.Writer, from, to int64, changes []journal.Change) {
	if len(changes) == 0 {
		fmt.Fprintf(out, "No ownership changes between revisions %d and %d\n", from, to)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANGE\tRESOURCE TYPE\tRESOURCE ID\tPREVIOUS\tCURRENT")
	for _, c := range changes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Type, c.ResourceType, c.ResourceID, dash(c.Previous), dash(c.Current))
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
