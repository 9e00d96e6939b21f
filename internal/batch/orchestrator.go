package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/waveform"
)

// Loader reads one capture file
type Loader func(path string) (*waveform.Capture, error)

// Config controls a batch run
type Config struct {
	MaxConcurrency int
	Channels       map[waveform.ChannelID]config.ChannelConfig
	Differential   config.DifferentialConfig
	Loader         Loader
	Metrics        *Metrics
}

// Summary is the outcome of a batch run. Entries follow the input order.
type Summary struct {
	Entries       []output.BatchEntry `json:"entries" yaml:"entries"`
	Stats         *Stats              `json:"stats" yaml:"stats"`
	StartTime     time.Time           `json:"start_time" yaml:"start_time"`
	EndTime       time.Time           `json:"end_time" yaml:"end_time"`
	TotalDuration time.Duration       `json:"total_duration" yaml:"total_duration"`
}

// Orchestrator analyzes many capture files with one analyzer
type Orchestrator struct {
	analyzer *analysis.Analyzer
	config   Config
	stats    *StatsCalculator
	logger   logging.Logger
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(analyzer *analysis.Analyzer, cfg Config, logger logging.Logger) (*Orchestrator, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("batch orchestrator requires an analyzer")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Loader == nil {
		cfg.Loader = waveform.LoadCSVFile
	}
	if cfg.Channels == nil {
		cfg.Channels = map[waveform.ChannelID]config.ChannelConfig{
			waveform.ChannelCH1: config.DefaultChannelConfig(),
			waveform.ChannelCH2: config.DefaultChannelConfig(),
		}
	}

	return &Orchestrator{
		analyzer: analyzer,
		config:   cfg,
		stats:    NewStatsCalculator(logger),
		logger:   logger.WithFields(logging.Fields{"component": "batch_orchestrator"}),
	}, nil
}

// Run analyzes every path. A failing file is recorded in its entry and
// does not stop the others. Once ctx is done no further files are started;
// those left over carry the context error.
func (o *Orchestrator) Run(ctx context.Context, paths []string) *Summary {
	startTime := time.Now()
	entries := make([]output.BatchEntry, len(paths))

	o.logger.Debug("Starting batch", logging.Fields{
		"files":           len(paths),
		"max_concurrency": o.config.MaxConcurrency,
	})

	p := pool.New().WithMaxGoroutines(o.config.MaxConcurrency)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(paths); j++ {
				entries[j] = output.BatchEntry{Source: paths[j], Err: err, Error: err.Error()}
			}
			o.logger.Warn("Batch cancelled", logging.Fields{
				"skipped": len(paths) - i,
			})
			break
		}

		// each goroutine owns exactly one slot
		i, path := i, path
		p.Go(func() {
			entries[i] = o.analyzeFile(path)
		})
	}
	p.Wait()

	for _, e := range entries {
		o.config.Metrics.Observe(e)
	}

	endTime := time.Now()
	summary := &Summary{
		Entries:       entries,
		Stats:         o.stats.Calculate(entries),
		StartTime:     startTime,
		EndTime:       endTime,
		TotalDuration: endTime.Sub(startTime),
	}

	o.logger.Info("Batch completed", logging.Fields{
		"files":         len(entries),
		"failed":        summary.Stats.Failed,
		"non_compliant": summary.Stats.NonCompliant,
		"total_time_s":  summary.TotalDuration.Seconds(),
	})
	return summary
}

func (o *Orchestrator) analyzeFile(path string) (entry output.BatchEntry) {
	start := time.Now()
	entry.Source = path

	defer func() {
		if r := recover(); r != nil {
			entry.Result = nil
			entry.Err = fmt.Errorf("panic while analyzing %s: %v", path, r)
		}
		if entry.Err != nil {
			entry.Error = entry.Err.Error()
			o.logger.Error(entry.Err, "File analysis failed", logging.Fields{"file": path})
		}
		entry.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	}()

	capture, err := o.config.Loader(path)
	if err != nil {
		entry.Err = err
		return entry
	}

	entry.Result, entry.Err = o.analyzer.AnalyzeCapture(capture, o.config.Channels, o.config.Differential)
	return entry
}
