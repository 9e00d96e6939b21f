package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/RyanBlaney/harmonic-analyzer/configs"
	"github.com/RyanBlaney/harmonic-analyzer/internal/batch"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// Mode selects what the application does with its inputs
type Mode string

const (
	ModeAnalyze Mode = "analyze"
	ModeImage   Mode = "image"
	ModeBatch   Mode = "batch"
)

// ErrNonCompliant is returned by Run when FailOnViolation is set and a
// measured current channel exceeds its limits
var ErrNonCompliant = errors.New("harmonic limits exceeded")

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	Mode            Mode
	Inputs          []string
	ConfigFile      string // Analysis run profile (optional)
	OutputFile      string
	OutputFormat    string
	ReportFile      string
	ExportFile      string
	MetricsFile     string
	Preset          string
	NumHarmonics    int
	MaxConcurrent   int
	NoDifferential  bool
	Channel         string // image trace channel
	SignalType      string // image trace signal type
	Ratio           float64
	FailOnViolation bool
	Verbose         bool
	Quiet           bool

	// Runtime context
	Logger logging.Logger
	Config *RunConfig
	Stdout io.Writer
	Now    func() time.Time
}

// AnalyzerApp handles the analyzer application lifecycle
type AnalyzerApp struct {
	ctx      *Context
	config   *RunConfig
	analyzer *analysis.Analyzer
	logger   logging.Logger
}

// NewAnalyzerApp creates a new analyzer application
func NewAnalyzerApp(ctx *Context) (*AnalyzerApp, error) {
	// Set up logging
	logger := setupLogging(ctx)
	ctx.Logger = logger

	if ctx.Stdout == nil {
		ctx.Stdout = os.Stdout
	}
	if ctx.Now == nil {
		ctx.Now = time.Now
	}

	// Load configuration
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	analyzer, err := analysis.NewAnalyzer(config.Analysis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	logger.Debug("Analyzer application initialized", logging.Fields{
		"mode":          string(ctx.Mode),
		"config_file":   ctx.ConfigFile,
		"inputs":        len(ctx.Inputs),
		"output_format": config.Output.Format,
		"preset":        analyzer.Preset().Name,
		"num_harmonics": analyzer.Config().NumHarmonics,
	})

	return &AnalyzerApp{
		ctx:      ctx,
		config:   config,
		analyzer: analyzer,
		logger:   logger,
	}, nil
}

// Run executes the selected mode
func (app *AnalyzerApp) Run(ctx context.Context) error {
	if len(app.ctx.Inputs) == 0 {
		return fmt.Errorf("no input files given")
	}

	switch app.ctx.Mode {
	case ModeAnalyze, "":
		return app.runAnalyze()
	case ModeImage:
		return app.runImage()
	case ModeBatch:
		return app.runBatch(ctx)
	default:
		return fmt.Errorf("unknown mode %q", app.ctx.Mode)
	}
}

func (app *AnalyzerApp) runAnalyze() error {
	path := app.ctx.Inputs[0]

	capture, err := waveform.LoadCSVFile(path)
	if err != nil {
		return err
	}

	result, err := app.analyzer.AnalyzeCapture(capture, app.config.Channels, app.config.Differential)
	if err != nil {
		return err
	}

	return app.outputCapture(result)
}

func (app *AnalyzerApp) runImage() error {
	path := app.ctx.Inputs[0]

	extractor, err := waveform.NewImageExtractor(app.config.Calibration, app.logger)
	if err != nil {
		return err
	}

	wf, err := extractor.ExtractFile(path)
	if err != nil {
		return err
	}

	id := app.config.ImageChannel
	result, err := app.analyzer.AnalyzeWaveform(path, string(id), wf, app.config.Channels[id])
	if err != nil {
		return err
	}

	return app.outputCapture(result)
}

func (app *AnalyzerApp) runBatch(ctx context.Context) error {
	paths, err := expandInputs(app.ctx.Inputs, app.config.BatchPattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no capture files match %q", app.config.BatchPattern)
	}

	var metrics *batch.Metrics
	if app.config.Output.MetricsFile != "" {
		metrics = batch.NewMetrics()
	}

	orchestrator, err := batch.NewOrchestrator(app.analyzer, batch.Config{
		MaxConcurrency: app.config.MaxConcurrency,
		Channels:       app.config.Channels,
		Differential:   app.config.Differential,
		Metrics:        metrics,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create batch orchestrator: %w", err)
	}

	summary := orchestrator.Run(ctx, paths)

	if err := app.outputBatch(summary); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(app.config.Output.MetricsFile); err != nil {
			return err
		}
	}

	// Return error if every file failed
	if summary.Stats.Failed == summary.Stats.Files {
		return fmt.Errorf("all %d capture files failed", summary.Stats.Files)
	}
	if app.ctx.FailOnViolation && summary.Stats.NonCompliant > 0 {
		return ErrNonCompliant
	}
	return nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	// --quiet and --verbose win over the configured log_level
	level := ""
	switch {
	case ctx.Quiet:
		level = "error"
	case ctx.Verbose:
		level = "debug"
	}
	if level != "" {
		if err := logging.SetLevel(level); err != nil {
			logging.Error(err, "Failed to set log level")
		}
	}
	return logging.WithFields(logging.Fields{"component": "app"})
}

// loadAndMergeConfig loads configuration from files and merges with CLI flags
func loadAndMergeConfig(ctx *Context) (*RunConfig, error) {
	// Load base configuration
	baseConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	// Load the run profile from file
	var profile *RunProfile
	if ctx.ConfigFile != "" {
		profile, err = loadRunProfileFromFile(ctx.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load run profile: %w", err)
		}
	}

	// Merge configurations
	merged, err := mergeRunConfig(baseConfig, profile, ctx)
	if err != nil {
		return nil, err
	}

	// Validate final configuration
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return merged, nil
}

// outputCapture writes the formatted result, then the optional report and
// harmonic export
func (app *AnalyzerApp) outputCapture(result *analysis.CaptureResult) error {
	data, err := app.format(result)
	if err != nil {
		return err
	}
	if err := app.emit(data); err != nil {
		return err
	}

	if path := app.config.Output.ReportFile; path != "" {
		var b strings.Builder
		if err := output.Report(&b, result, app.ctx.Now()); err != nil {
			return err
		}
		if err := app.writeToFile(path, []byte(b.String())); err != nil {
			return err
		}
	}

	if path := app.config.Output.ExportFile; path != "" {
		if err := app.export(path, result); err != nil {
			return err
		}
	}

	banner := output.ComplianceBanner(result)
	app.logger.Info(banner, logging.Fields{"source": result.Source})
	if app.isTable() && app.ctx.OutputFile == "" {
		fmt.Fprintln(app.ctx.Stdout, "\n"+banner)
	}

	if app.ctx.FailOnViolation && !result.Compliant() {
		return ErrNonCompliant
	}
	return nil
}

func (app *AnalyzerApp) outputBatch(summary *batch.Summary) error {
	// table and csv render one row per channel, structured formats keep
	// the statistics
	var payload any = summary
	if app.isTable() || strings.EqualFold(app.config.Output.Format, "csv") {
		payload = summary.Entries
	}

	data, err := app.format(payload)
	if err != nil {
		return err
	}
	if err := app.emit(data); err != nil {
		return err
	}

	if path := app.config.Output.ReportFile; path != "" {
		var b strings.Builder
		if err := output.BatchReport(&b, summary.Entries, app.ctx.Now()); err != nil {
			return err
		}
		if err := app.writeToFile(path, []byte(b.String())); err != nil {
			return err
		}
	}
	return nil
}

func (app *AnalyzerApp) format(data any) ([]byte, error) {
	formatter, err := output.NewFormatter(app.config.Output.Format)
	if err != nil {
		return nil, err
	}
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.Precision = app.config.Output.Precision
	}

	formatted, err := formatter.Format(data, app.config.Output.Pretty)
	if err != nil {
		return nil, fmt.Errorf("failed to format output data: %w", err)
	}
	return formatted, nil
}

// emit writes to the output file or stdout
func (app *AnalyzerApp) emit(data []byte) error {
	if app.ctx.OutputFile != "" {
		return app.writeToFile(app.ctx.OutputFile, data)
	}
	_, err := app.ctx.Stdout.Write(data)
	return err
}

func (app *AnalyzerApp) export(path string, result *analysis.CaptureResult) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		return output.ExportXLSX(path, result)
	}

	var b strings.Builder
	if err := output.WriteHarmonicsCSV(&b, result); err != nil {
		return err
	}
	return app.writeToFile(path, []byte(b.String()))
}

func (app *AnalyzerApp) isTable() bool {
	switch strings.ToLower(strings.TrimSpace(app.config.Output.Format)) {
	case "table", "text":
		return true
	}
	return false
}

// writeToFile writes data to path, creating its directory
func (app *AnalyzerApp) writeToFile(path string, data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": path,
		"size_bytes":  len(data),
	})

	return nil
}

// expandInputs replaces each directory with its files matching pattern.
// Files are kept in the order given, directory contents sorted by name.
func expandInputs(inputs []string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.csv"
	}

	var paths []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			// missing files are reported per entry by the batch
			paths = append(paths, in)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(in, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid batch pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}
