package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/gerbenv/internal/config"
	"github.com/nao1215/gerbenv/internal/database"
	"github.com/nao1215/gerbenv/internal/log"
	"github.com/nao1215/gerbenv/internal/model"
	"github.com/nao1215/gerbenv/internal/pipeline"
	"github.com/nao1215/gerbenv/internal/report"
	"github.com/spf13/cobra"
)

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [project-dir...]",
		Short: "Convert a Gerber project into training-environment artifacts",
		Long: `Convert loads the .gbrjob file of each project directory, classifies
the referenced Gerber layers, and produces the artifacts consumed by
the training environment:

- Side renders (top/bot SVG and PNG) with a category-ordered palette
- Per-category composite PNGs (glue, soldermask, solderpaste)
- Binary observation grids resized to a fixed cell size
- Flattened shape records (rotated rects, circles, ellipses) as JSON
- A conversion report and a run record in the history database

Examples:
  # Convert the project in the current directory
  gerbenv convert

  # Convert a specific project directory
  gerbenv convert boards/demo

  # Convert multiple projects concurrently
  gerbenv convert --batch 4 boards/alpha boards/beta boards/gamma

  # Recolor every layer to one color and raise the resolution
  gerbenv convert --uniform-color "#00FF00" --dpmm 45 boards/demo

  # Output JSON report
  gerbenv convert --json boards/demo

Configuration file (.gerbenv) example:
  defaults:
    dpmm: 30
  projects:
    demo:
      uniformColor: "#00FF00"
      colors:
        GLUE: "#FF00FF"`,
		Args: cobra.ArbitraryArgs,
		RunE: runConvertCmd,
	}

	// Input flags
	cmd.Flags().StringP("job", "j", "",
		"Explicit .gbrjob path (bypasses discovery; single project only)")
	cmd.Flags().StringP("output", "o", "",
		"Output directory for artifacts (default: out/ inside each project)")

	// Render flags
	cmd.Flags().Float64P("dpmm", "d", config.DefaultDPMM,
		"Raster resolution in dots per millimeter")
	cmd.Flags().StringP("uniform-color", "u", "",
		"Recolor every layer to this hex color (outline and legend stay black)")
	cmd.Flags().String("background", config.DefaultBackground,
		"Canvas color behind the rendered layers")
	cmd.Flags().Bool("no-fill-background", false,
		"Keep transparent canvas pixels instead of flattening onto the background")
	cmd.Flags().Bool("by-layer", false,
		"Write a PNG per layer in addition to the side composites")
	cmd.Flags().Bool("composites", true,
		"Write per-category composite PNGs (inputs to observation export)")
	cmd.Flags().IntP("observation-size", "s", config.DefaultObservationSize,
		"Side length in cells of the exported observation grids")

	// Batch conversion flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent conversions")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .gerbenv in current or home directory)")

	// Report flags
	cmd.Flags().Bool("json", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("output-file", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runConvertCmd executes the convert command.
func runConvertCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with home directory redaction
	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runConvert(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
// Precedence from lowest to highest: defaults, config file, GERBENV_*
// environment variables, CLI flags. Only flags the user actually set
// override the environment layer.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load per-project configurations from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.ProjectConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.ProjectConfigs = &config.File{
			Projects: make(map[string]config.ProjectConfig),
		}
	}

	// Environment overrides sit between the config file and flags
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("job") {
		if cfg.JobPath, err = cmd.Flags().GetString("job"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("output") {
		if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("dpmm") {
		if cfg.DPMM, err = cmd.Flags().GetFloat64("dpmm"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("uniform-color") {
		if cfg.UniformColor, err = cmd.Flags().GetString("uniform-color"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("background") {
		if cfg.Background, err = cmd.Flags().GetString("background"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("no-fill-background") {
		noFill, err := cmd.Flags().GetBool("no-fill-background")
		if err != nil {
			return nil, err
		}
		cfg.FillBackground = !noFill
	}
	if cmd.Flags().Changed("by-layer") {
		if cfg.ByLayer, err = cmd.Flags().GetBool("by-layer"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("composites") {
		if cfg.Composites, err = cmd.Flags().GetBool("composites"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("observation-size") {
		if cfg.ObservationSize, err = cmd.Flags().GetInt("observation-size"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("batch") {
		if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
			return nil, err
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output-file")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Always record runs using the XDG data directory unless the
	// environment picked another location
	cfg.SaveToDB = true
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	// Positional arguments are project directories; default to the
	// current directory
	if len(args) == 0 {
		args = []string{"."}
	}
	cfg.Projects = args

	return cfg, nil
}

// runConvert executes the conversion.
func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting conversion",
		"projects", cfg.Projects,
		"dpmm", cfg.DPMM,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Use batch processor for parallel conversion if multiple projects
	if len(cfg.Projects) > 1 && cfg.BatchSize > 1 {
		return runBatchConvert(ctx, cfg, db, logger)
	}

	// Single project or sequential conversion
	return runSequentialConvert(ctx, cfg, db, logger)
}

// runSequentialConvert converts projects one at a time.
func runSequentialConvert(ctx context.Context, cfg *config.Config, db *database.RunDB, logger *slog.Logger) error {
	for _, projectDir := range cfg.Projects {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p := pipeline.DefaultPipeline(projectDir, cfg,
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)

		convReport := model.NewReport(filepath.Base(projectDir), "")

		fmt.Printf("Converting %s...\n", projectDir)
		startTime := time.Now()

		// Execute the pipeline
		if err := p.Execute(ctx, convReport); err != nil {
			logger.Error("conversion failed", "project", projectDir, "error", err)
			fmt.Fprintf(os.Stderr, "Conversion error for %s: %v\n", projectDir, err)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Conversion completed in %s\n\n", elapsed.Round(time.Millisecond))

		// Generate and output report
		if err := outputReport(cfg, convReport); err != nil {
			logger.Error("report failed", "project", projectDir, "error", err)
		}

		// Save to database if enabled
		if err := saveRunReport(ctx, db, convReport, logger); err != nil {
			logger.Error("failed to save run report", "project", projectDir, "error", err)
		}
	}

	return nil
}

// runBatchConvert converts multiple projects concurrently using BatchProcessor.
func runBatchConvert(ctx context.Context, cfg *config.Config, db *database.RunDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch conversion of %d projects (concurrency: %d)...\n\n",
		len(cfg.Projects), cfg.BatchSize)

	startTime := time.Now()

	// Create batch processor with pipeline factory
	bp := pipeline.NewBatchProcessor(
		func(projectDir string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(projectDir, cfg,
				pipeline.WithLogger(logger),
				pipeline.WithContinueOnError(true),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Projects, func(convReport *model.Report, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Conversion completed: %s\n", index+1, len(cfg.Projects), convReport.Project)

		// Generate and output report
		if err := outputReport(cfg, convReport); err != nil {
			logger.Error("report failed", "project", convReport.Project, "error", err)
		}

		// Save to database if enabled
		if err := saveRunReport(ctx, db, convReport, logger); err != nil {
			logger.Error("failed to save run report", "project", convReport.Project, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch conversion completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// outputReport outputs the conversion report in the requested format.
func outputReport(cfg *config.Config, convReport *model.Report) error {
	// Generate simple report if needed
	if convReport.SimpleReport == nil {
		convReport.SimpleReport = model.NewSimpleReport(convReport)
	}

	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (detailed report with all data)
	if cfg.JSONReport {
		writer := report.NewJSONWriter(output, report.WithPrettyPrint())
		_, err := writer.Write(convReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(convReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output)
	_, err := writer.Write(convReport)
	return err
}

// saveRunReport saves the conversion report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.RunDB, convReport *model.Report, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// Ensure SimpleReport is generated before saving
	if convReport.SimpleReport == nil {
		convReport.SimpleReport = model.NewSimpleReport(convReport)
	}

	runID, err := db.SaveReport(ctx, convReport)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run report saved to database", "project", convReport.Project, "runID", runID)
	return nil
}
