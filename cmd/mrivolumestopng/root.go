package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mrivolumestopng/internal/logging"
	"mrivolumestopng/pkg/config"
	"mrivolumestopng/pkg/generator"
	"mrivolumestopng/pkg/metaimage"
	"mrivolumestopng/pkg/metrics"
	"mrivolumestopng/pkg/patient"
	"mrivolumestopng/pkg/pngwriter"
	"mrivolumestopng/pkg/volume"
)

var rootCmd = &cobra.Command{
	Use:   "mrivolumestopng",
	Short: "Convert MRI cine volumes into PNG frames and label overlays",
	Long: `mrivolumestopng reads MetaImage acquisitions per patient, writes every frame
as an 8-bit PNG and fuses labeled frames with their annotation masks.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "config.yaml", "YAML configuration file")
	f.Int("cores", 0, "Number of frames converted concurrently (default from config)")
	f.Float64("alpha", -1, "Overlay opacity in [0,1] (default from config)")
	f.String("output", "", "Output directory (default from config)")
	f.Bool("verbose", false, "Enable debug logging")
	f.String("metrics-file", "", "Write Prometheus textfile metrics here after the run")
}

// app bundles the wired components for a command
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	loader  generator.Loader
	conv    *generator.Converter
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if cores, _ := cmd.Flags().GetInt("cores"); cores > 0 {
		cfg.Processing.NumCores = cores
	}
	if alpha, _ := cmd.Flags().GetFloat64("alpha"); alpha >= 0 {
		cfg.Overlay.Alpha = alpha
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Output.Dir = out
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Output.Verbose = true
	}
	if mf, _ := cmd.Flags().GetString("metrics-file"); mf != "" {
		cfg.Output.MetricsFile = mf
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Level(cfg.Output.Verbose))
	m := metrics.New()

	axis, err := volume.ParseAxis(cfg.Processing.FrameAxis)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.OverlayOptions()
	if err != nil {
		return nil, err
	}

	repo := patient.NewRepository(metaimage.NewReaderAlong(axis), cfg.Input.Extension, logger)
	writer := pngwriter.NewWriter(uint(cfg.Output.Width), uint(cfg.Output.Height))
	conv, err := generator.NewConverter(generator.Params{
		OutputDir: cfg.Output.Dir,
		NumCores:  cfg.Processing.NumCores,
		Overlay:   opts,
	}, writer, m, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		loader:  generator.Loader{Repo: repo},
		conv:    conv,
	}, nil
}

// flushMetrics writes the textfile if one is configured
func (a *app) flushMetrics() {
	if a.cfg.Output.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		a.logger.Warn("failed to write metrics file", "file", a.cfg.Output.MetricsFile, "error", err)
	}
}
