package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <repository> [dir]",
	Short: "List a directory, deleted entries included",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		om, repo, err := open(cmd, args[0])
		if err != nil {
			return err
		}
		var dir []byte
		if len(args) == 2 {
			dir = []byte(args[1])
		}
		entries, err := om.List(repo, dir)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, e := range entries {
			state := "-"
			if !e.Exists {
				state = "D"
			}
			last := ""
			if n := len(e.ChangeDates); n > 0 {
				last = e.ChangeDates[n-1].Display
			}
			fmt.Fprintf(tw, "%s\t%s\t%d versions\t%s\n", state, e.Path, len(e.RestoreDates), last)
		}
		return tw.Flush()
	},
}
