package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/geotag/pkg/container"
	"github.com/menta2k/geotag/pkg/photo"
)

// inspection describes a single photo file
type inspection struct {
	record
	Container string      `json:"container"`
	Image     *photo.Info `json:"image,omitempty"`
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, container.SniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return container.Detect(header[:n]).String(), nil
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show container format, dimensions and location of a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := sniff(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			tagger := opts.tagger(filepath.Dir(path))
			out := inspection{
				record:    newRecord(path, tagger.Diagnose(cmd.Context(), filepath.Base(path))),
				Container: format,
			}
			if info, err := tagger.InspectFile(path); err != nil {
				opts.logger.Debug("image decode unavailable", "path", path, "error", err)
			} else {
				out.Image = &info
			}

			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(w, out)
			}
			fmt.Fprintf(w, "file:      %s\n", path)
			fmt.Fprintf(w, "container: %s\n", out.Container)
			if out.Image != nil {
				fmt.Fprintf(w, "image:     %s %dx%d (%.2f)\n", out.Image.Format, out.Image.Width, out.Image.Height, out.Image.AspectRatio)
			}
			if out.Coordinates != nil {
				fmt.Fprintf(w, "location:  %s\n", out.Coordinates)
			} else {
				fmt.Fprintln(w, "location:  -")
			}
			fmt.Fprintf(w, "outcome:   %s (fallback %t)\n", out.Outcome, out.Fallback)
			return nil
		},
	}
}
