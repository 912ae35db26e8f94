package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pii-masking-service/internal/masker"
)

func init() {
	rootCmd.AddCommand(classesCmd)
}

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List classifications and their placeholders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CLASSIFICATION\tPLACEHOLDER")
		for _, c := range masker.Classifications() {
			ph, _ := masker.PlaceholderFor(c)
			fmt.Fprintf(tw, "%s\t%s\n", c, ph)
		}
		return tw.Flush()
	},
}
