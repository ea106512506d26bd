package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions <repository>",
	Short: "List the backup sessions of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		om, repo, err := open(cmd, args[0])
		if err != nil {
			return err
		}
		sessions, err := om.Sessions(repo)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range sessions {
			fmt.Fprintf(out, "%d\t%s\t%s\n", s.Key(), s.DisplayString(), s)
		}
		return nil
	},
}
