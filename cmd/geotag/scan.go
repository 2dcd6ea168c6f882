package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/uber/h3-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/geotag/internal/utils"
	"github.com/menta2k/geotag/pkg/memory"
)

// summary aggregates a scan
type summary struct {
	Files     int            `json:"files"`
	Located   int            `json:"located"`
	Fallbacks int            `json:"fallbacks"`
	Places    int            `json:"places"`
	Bytes     int64          `json:"bytes"`
	Outcomes  map[string]int `json:"outcomes"`
}

func summarize(records []record, resolution int) summary {
	s := summary{Files: len(records), Outcomes: map[string]int{}}
	cells := map[h3.Cell]struct{}{}
	for _, r := range records {
		s.Outcomes[r.Outcome]++
		s.Bytes += r.Size
		if r.Fallback {
			s.Fallbacks++
		}
		if r.Coordinates == nil {
			continue
		}
		s.Located++
		if cell, err := memory.Cell(*r.Coordinates, resolution); err == nil {
			cells[cell] = struct{}{}
		}
	}
	s.Places = len(cells)
	return s
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "%d photos (%s), %d located in %d places, %d needed a temporary copy\n",
		s.Files, utils.FormatFileSize(s.Bytes), s.Located, s.Places, s.Fallbacks)

	outcomes := make([]string, 0, len(s.Outcomes))
	for o := range s.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-22s %d\n", o, s.Outcomes[o])
	}
}

func newProgressBar(w io.Writer, n int) *progressbar.ProgressBar {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func newScanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Extract locations of every photo below a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.root
			if len(args) > 0 {
				dir = args[0]
			}

			files, err := utils.ListImageFiles(dir, opts.cfg.Scan.Extensions)
			if err != nil {
				return fmt.Errorf("listing %s: %w", dir, err)
			}
			opts.logger.Info("scanning photos", "dir", dir, "files", len(files), "workers", opts.cfg.Scan.Workers)

			records, err := scan(cmd, opts, dir, files)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range records {
				if err := printRecord(out, r, opts.jsonOut); err != nil {
					return err
				}
			}

			s := summarize(records, opts.cfg.Memory.H3Resolution)
			opts.logger.Info("scan complete", "files", s.Files, "located", s.Located, "places", s.Places, "fallbacks", s.Fallbacks)
			if !opts.jsonOut {
				s.print(out)
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "concurrent extractions (default from config)")
	return cmd
}

// scan extracts every file concurrently and returns records in file order
func scan(cmd *cobra.Command, opts *options, dir string, files []string) ([]record, error) {
	tagger := opts.tagger(dir)
	records := make([]record, len(files))
	bar := newProgressBar(cmd.ErrOrStderr(), len(files))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.cfg.Scan.Workers)
	for i, id := range files {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := tagger.Diagnose(ctx, id)
			records[i] = newRecord(id, res)
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(id))); err == nil {
				records[i].Size = info.Size()
			}
			if bar != nil {
				if err := bar.Add(1); err != nil {
					return fmt.Errorf("updating progress bar for %s: %w", id, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return records, nil
}
