package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/menta2k/geotag"
	"github.com/menta2k/geotag/internal/config"
	"github.com/menta2k/geotag/internal/logger"
	"github.com/menta2k/geotag/pkg/geolocation"
	"github.com/menta2k/geotag/pkg/source"
)

// options is shared by every subcommand and filled in by PersistentPreRunE
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	tempDir    string
	root       string
	jsonOut    bool
	dumpStats  bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *geolocation.Metrics
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "geotag",
		Short: "find where photos were taken",
		Long: `
geotag reads the GPS location embedded in photos (JPEG, TIFF, HEIF/HEIC,
WebP, PNG) so they can be pinned on the shared Memories map. A photo
without a location is reported as such, never as a failure.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.dumpStats || opts.registry == nil {
				return nil
			}
			return writeMetrics(cmd.ErrOrStderr(), opts.registry)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "configuration file (default "+config.GetConfigPath()+" if present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json|text")
	flags.StringVar(&opts.tempDir, "temp-dir", "", "directory for temporary photo copies (default system temp)")
	flags.StringVar(&opts.root, "root", ".", "directory photo identifiers are resolved against")
	flags.BoolVar(&opts.jsonOut, "json", false, "print results as JSON lines")
	flags.BoolVar(&opts.dumpStats, "metrics", false, "write extraction metrics to stderr in Prometheus text format when done")

	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup resolves configuration from defaults, file, environment and flags, in
// that order, and initializes logging and metrics.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if flags.Changed("temp-dir") {
		cfg.Extractor.TempDir = o.tempDir
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		if workers, _ := flags.GetInt("workers"); workers != 0 {
			cfg.Scan.Workers = workers
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger.Init(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	o.registry = prometheus.NewRegistry()
	o.metrics = geolocation.NewMetrics(o.registry)

	return nil
}

func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}

	cfg, err := config.LoadFromFile(config.GetConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// tagger builds a Geotag resolving identifiers below dir
func (o *options) tagger(dir string) *geotag.Geotag {
	return geotag.NewWithConfig(source.NewDirProvider(dir), geotag.Config{
		TempDir:          o.cfg.Extractor.TempDir,
		MaxBufferedBytes: o.cfg.Extractor.MaxBufferedBytes,
		Logger:           o.logger,
		Metrics:          o.metrics,
	})
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "geotag:", err)
	os.Exit(1)
}
