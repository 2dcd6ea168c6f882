package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/geotag"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the geotag version",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geotag %s\n", geotag.GetVersion())
		},
	}
}
