package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhaochunqi/image-compress/internal/codec"
	"github.com/zhaochunqi/image-compress/internal/compressor"
	"github.com/zhaochunqi/image-compress/internal/config"
	"github.com/zhaochunqi/image-compress/internal/extractor"
	"github.com/zhaochunqi/image-compress/internal/logger"
	"github.com/zhaochunqi/image-compress/internal/service"
	"github.com/zhaochunqi/image-compress/internal/statistics"
	"github.com/zhaochunqi/image-compress/internal/watcher"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd watches SOURCE_DIR and compresses every new image into COMPRESSED_DIR.
var rootCmd = &cobra.Command{
	Use:   "image-compress",
	Short: "Watch a folder and compress new images",
	Long: `image-compress watches a source folder and writes a compressed copy of
every image that appears in it to an output folder.

Configuration is read from the environment:
  SOURCE_DIR            folder to watch (default /app/source)
  COMPRESSED_DIR        output folder (default /app/compressed)
  COMPRESSION_QUALITY   1-100 (default 100)
  LOSSLESS              lossless encoding (default false)
  CONVERT_TO_WEBP       write WebP instead of the source format (default true)
  AUTO_ORIENT           apply EXIF orientation (default true)
  PRESERVE_METADATA     copy EXIF tags with exiftool (default false)
  WATCH_MODE            notify or poll (default notify)
  LOG_LEVEL, LOG_FORMAT, LOG_FILE`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

// compressCmd runs the pipeline once for the given files.
var compressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Compress the given files once and exit",
	Long: `Runs the same pipeline the watcher uses on each file argument and writes
the results to COMPRESSED_DIR. Hidden files are not filtered. Exits with a
non-zero status if any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args)
	},
}

// formatsCmd prints codec support for each format.
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Show which image formats can be decoded and encoded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFormats(cmd)
	},
}

// inspectCmd shows how a file would be processed without writing anything.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show detection, orientation and encode settings for a file",
	Long: `Probes a file the way the watcher does and prints the detected format,
dimensions, EXIF orientation and the output path and settings that would be used.
This is useful for debugging why a file was skipped or how it will be encoded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(inspectCmd)
}

// runWatch subscribes to SOURCE_DIR and handles events until SIGINT or SIGTERM.
func runWatch(ctx context.Context) error {
	cfg, base, err := setup()
	if err != nil {
		return err
	}
	log := logger.WithOperation(base, "watch")

	source, err := watcher.NewSource(cfg, log)
	if err != nil {
		return err
	}

	comp := compressor.NewDefaultCompressor(cfg, log)
	defer comp.Close()

	stats := statistics.NewStatistics()
	svc := service.NewService(cfg, log, stats, comp)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := source.Subscribe(ctx, cfg.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.SourceDir, err)
	}

	// Run returns once the source has closed the channel after cancellation.
	svc.Run(ctx, events)

	log.Info("Stopping monitoring")
	log.Info("\n" + stats.GetSummary())
	logCacheStats(log, comp)
	if stats.GetFilesWithErrors() > 0 {
		log.Info("\n" + stats.GetErrorSummary())
	}
	return nil
}

// runCompress processes each argument once and prints the statistics.
func runCompress(ctx context.Context, paths []string) error {
	cfg, base, err := setup()
	if err != nil {
		return err
	}
	log := logger.WithOperation(base, "compress")

	comp := compressor.NewDefaultCompressor(cfg, log)
	defer comp.Close()

	stats := statistics.NewStatistics()
	svc := service.NewService(cfg, log, stats, comp)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := svc.ProcessPaths(ctx, paths)
	logCacheStats(log, comp)

	fmt.Println("\n" + stats.GetSummary())
	fmt.Println("\n" + stats.GetFormatBreakdown())
	if stats.GetFilesWithErrors() > 0 {
		fmt.Println(stats.GetErrorSummary())
	}
	return runErr
}

// runFormats prints the codec self-test table.
func runFormats(cmd *cobra.Command) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tENCODE\tDECODE\tERROR")

	var broken int
	for _, s := range codec.Supported(codec.NewDefaultEncoder()) {
		errText := "-"
		if s.Err != nil {
			errText = s.Err.Error()
		}
		if !s.Encode || !s.Decode {
			broken++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Format, yesNo(s.Encode), yesNo(s.Decode), errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if broken > 0 {
		return fmt.Errorf("%d formats are not fully supported", broken)
	}
	return nil
}

// runInspect prints what the pipeline would do with filePath.
func runInspect(cmd *cobra.Command, filePath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s (%d bytes)\n", filePath, info.Size())

	probe, err := codec.Inspect(filePath)
	if err != nil {
		return err
	}
	if !probe.OK {
		fmt.Fprintf(out, "Not an image: %s\n", probe.Reason)
		return nil
	}
	fmt.Fprintf(out, "Format: %s, Mode: %s, Size: %dx%d\n",
		probe.Format, probe.ColorModel, probe.Width, probe.Height)

	orientation, err := extractor.NewEXIFExtractor(logger.Discard()).Orientation(filePath)
	if err != nil {
		fmt.Fprintf(out, "Orientation: unreadable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Orientation: %s (applied: %t)\n", orientation, cfg.AutoOrient && orientation.NeedsTransform())
	}

	opts := compressor.EncodeOptions(cfg, filepath.Ext(filePath), probe.Format, info.Size())
	fmt.Fprintf(out, "Output: %s\n", compressor.OutputPath(cfg, filePath))
	fmt.Fprintf(out, "Encode: format=%s quality=%d lossless=%t progressive=%t optimize=%t\n",
		opts.Format, opts.Quality, opts.Lossless, opts.Progressive, opts.Optimize)
	return nil
}

// setup loads the configuration, creates the directories and builds the logger.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	for _, warning := range cfg.Conflicts() {
		log.Warnf("Configuration conflict: %s", warning)
	}

	log.Infof("Monitoring folder: %s", cfg.SourceDir)
	log.Infof("Output folder: %s", cfg.CompressedDir)
	log.Infof("Compression quality: %d", cfg.Quality)
	log.Infof("Lossless compression: %t", cfg.Lossless)
	log.Infof("Convert to WebP: %t", cfg.ConvertToWebP)
	log.Infof("Auto orient: %t", cfg.AutoOrient)
	log.Infof("Preserve metadata: %t", cfg.PreserveMetadata)
	log.Infof("Watch mode: %s", cfg.Watch.Mode)

	return cfg, log, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logger.NewLogger(logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    true,
	})
}

// logCacheStats reports how often EXIF orientation lookups hit the cache.
func logCacheStats(log logrus.FieldLogger, comp *compressor.DefaultCompressor) {
	if cs, ok := comp.OrientationCacheStats(); ok && cs.TotalQueries > 0 {
		log.WithFields(logrus.Fields{
			"hits":     cs.Hits,
			"misses":   cs.Misses,
			"hit_rate": fmt.Sprintf("%.2f", cs.HitRate),
		}).Info("Orientation cache statistics")
	}
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
