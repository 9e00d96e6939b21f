package batch

import (
	"context"
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/output"
)

// StatsCalculator aggregates the per-file outcomes of a batch
type StatsCalculator struct {
	logger logging.Logger
}

// NewStatsCalculator creates a new stats calculator
func NewStatsCalculator(logger logging.Logger) *StatsCalculator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &StatsCalculator{
		logger: logger,
	}
}

// Distribution represents statistical measures of a dataset
type Distribution struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95" yaml:"p95"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Count  int     `json:"count" yaml:"count"`
}

// Stats summarises a batch run
type Stats struct {
	Files        int `json:"files" yaml:"files"`
	Failed       int `json:"failed" yaml:"failed"`
	NonCompliant int `json:"non_compliant" yaml:"non_compliant"`

	// THD and TDD over measured current channels only
	THDPercent *Distribution `json:"thd_percent" yaml:"thd_percent"`
	TDDPercent *Distribution `json:"tdd_percent" yaml:"tdd_percent"`
	DurationMS *Distribution `json:"duration_ms" yaml:"duration_ms"`

	// ViolationsByOrder counts failing channels per harmonic order
	ViolationsByOrder map[int]int    `json:"violations_by_order" yaml:"violations_by_order"`
	ErrorDistribution map[string]int `json:"error_distribution" yaml:"error_distribution"`
}

// Calculate builds the batch statistics
func (sc *StatsCalculator) Calculate(entries []output.BatchEntry) *Stats {
	stats := &Stats{
		Files:             len(entries),
		ViolationsByOrder: make(map[int]int),
		ErrorDistribution: make(map[string]int),
	}

	var thd, tdd, durations []float64
	for _, e := range entries {
		durations = append(durations, e.DurationMS)

		if e.Err != nil || e.Result == nil {
			stats.Failed++
			stats.ErrorDistribution[categorizeError(e.Err)]++
			continue
		}
		if !e.Result.Compliant() {
			stats.NonCompliant++
		}

		for _, ch := range e.Result.Channels {
			if ch.Derived || ch.SignalType != config.SignalCurrent {
				continue
			}
			thd = append(thd, ch.THDPercent)
			tdd = append(tdd, ch.TDDPercent)
			for _, order := range ch.ViolationOrders() {
				stats.ViolationsByOrder[order]++
			}
		}
	}

	stats.THDPercent = sc.distribution(thd)
	stats.TDDPercent = sc.distribution(tdd)
	stats.DurationMS = sc.distribution(durations)

	sc.logger.Debug("Batch statistics calculated", logging.Fields{
		"files":            stats.Files,
		"failed":           stats.Failed,
		"current_channels": stats.THDPercent.Count,
		"violated_orders":  len(stats.ViolationsByOrder),
	})
	return stats
}

func (sc *StatsCalculator) distribution(data []float64) *Distribution {
	if len(data) == 0 {
		return &Distribution{}
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	d := &Distribution{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
	}
	d.Mean, d.StdDev = stat.PopMeanStdDev(sorted, nil)

	for _, v := range []*float64{&d.Mean, &d.Median, &d.P95, &d.Min, &d.Max, &d.StdDev} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return d
}

// percentile interpolates linearly between the closest ranks of sorted data
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func categorizeError(err error) string {
	switch {
	case err == nil:
		return "no_result"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	if code := common.CodeOf(err); code != "" {
		return string(code)
	}
	return "other"
}
