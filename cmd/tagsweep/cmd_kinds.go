package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// kindsCmd lists the resource kinds and how each is recorded
var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List supported resource kinds",
	Long: `List the resource kinds tagsweep sweeps, in sweep order, with the
resource_type each is recorded under and whether untagged resources of the
kind are skipped.`,
	Args: cobra.NoArgs,
	RunE: runKinds,
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}

func runKinds(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tRESOURCE TYPE\tDELIMITER\tUNTAGGED")
	for _, k := range resource.Kinds() {
		untagged := "unknown"
		if k.SkipUntagged() {
			untagged = "skipped"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k, k.RecordType(), k.Delimiter(), untagged)
	}
	return w.Flush()
}
