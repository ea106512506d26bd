package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kebairia/rdhist/internal/operations"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <repository> <path>...",
	Short: "Show the change and restore dates of paths",
	Long: `history computes, for each path relative to the repository root, the
sessions at which it changed and the dates it can be restored from.
An empty path ("") stands for the repository root.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		om, repo, err := open(cmd, args[0])
		if err != nil {
			return err
		}
		paths := make([][]byte, len(args)-1)
		for i, p := range args[1:] {
			paths[i] = []byte(p)
		}

		report, runErr := om.HistoryAll(repo, paths)
		if report == nil {
			return runErr
		}
		if historyJSON {
			if err := report.Write(cmd.OutOrStdout()); err != nil {
				return err
			}
		} else if err := printReport(cmd.OutOrStdout(), report.Entries); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print the report as JSON")
}

func printReport(w io.Writer, entries []operations.EntryReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		state := "present"
		if !e.Exists {
			state = "deleted"
		}
		fmt.Fprintf(tw, "%s\t(%s)\n", e.Path, state)
		if e.Error != "" {
			fmt.Fprintf(tw, "  error:\t%s\n", e.Error)
			continue
		}
		restorable := make(map[int64]bool, len(e.RestoreDates))
		for _, v := range e.RestoreDates {
			restorable[v.Epoch] = true
		}
		for _, v := range e.ChangeDates {
			mark := ""
			if restorable[v.Epoch] {
				mark = "restorable"
			}
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", v.Display, v.Epoch, mark)
		}
	}
	return tw.Flush()
}
