package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/menta2k/geotag/pkg/geolocation"
	"github.com/menta2k/geotag/pkg/types"
)

// record is one line of extract or scan output
type record struct {
	ID          string             `json:"id"`
	Coordinates *types.Coordinates `json:"coordinates,omitempty"`
	Outcome     string             `json:"outcome"`
	Fallback    bool               `json:"fallback"`
	Size        int64              `json:"size,omitempty"`
}

func newRecord(id string, res geolocation.Result) record {
	r := record{
		ID:       id,
		Outcome:  res.Outcome.String(),
		Fallback: res.UsedFallback,
	}
	if res.Found {
		c := res.Coordinates
		r.Coordinates = &c
	}
	return r
}

func printRecord(w io.Writer, r record, asJSON bool) error {
	if asJSON {
		return writeJSON(w, r)
	}
	if r.Coordinates == nil {
		_, err := fmt.Fprintf(w, "%s -\n", r.ID)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %.6f %.6f\n", r.ID, r.Coordinates.Latitude, r.Coordinates.Longitude)
	return err
}

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <id>...",
		Short: "Print the location of photos below --root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagger := opts.tagger(opts.root)
			for _, id := range args {
				res := tagger.Diagnose(cmd.Context(), id)
				if err := printRecord(cmd.OutOrStdout(), newRecord(id, res), opts.jsonOut); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
