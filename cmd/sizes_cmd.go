package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kebairia/rdhist/internal/operations"
	"github.com/kebairia/rdhist/internal/rdtime"
)

var sizesDate string

var sizesCmd = &cobra.Command{
	Use:   "sizes <repository> <path>",
	Short: "Show the recorded sizes of a path",
	Long: `sizes prints the mirror and source sizes of path as recorded in the
file statistics of a session. Without --date every change date is listed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		om, repo, err := open(cmd, args[0])
		if err != nil {
			return err
		}
		path := []byte(args[1])
		out := cmd.OutOrStdout()

		if sizesDate != "" {
			date, err := parseDate(sizesDate)
			if err != nil {
				return err
			}
			s, err := om.SizesAt(repo, date, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "mirror_size\t%d\nsource_size\t%d\n", s.Mirror, s.Source)
			return nil
		}

		versions, err := om.SizeHistory(repo, path)
		if err != nil {
			return err
		}
		return printSizes(out, versions)
	},
}

func init() {
	sizesCmd.Flags().
		StringVarP(&sizesDate, "date", "d", "", "session as a timestamp (2014-11-02T17:23:41-05:00) or epoch seconds")
}

// parseDate accepts either a repository timestamp or the epoch seconds used
// in restore links.
func parseDate(s string) (rdtime.Timestamp, error) {
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return rdtime.FromUnix(sec), nil
	}
	return rdtime.Parse(s)
}

func printSizes(w io.Writer, versions []operations.Version) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEPOCH\tMIRROR\tSOURCE")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", v.Display, v.Epoch, size(v.Sizes, true), size(v.Sizes, false))
	}
	return tw.Flush()
}

func size(s *operations.SizeReport, mirror bool) string {
	if s == nil {
		return "?"
	}
	v := s.Source
	if mirror {
		v = s.Mirror
	}
	if v == nil {
		return "?"
	}
	return strconv.FormatInt(*v, 10)
}
