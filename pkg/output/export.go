package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
)

// HarmonicRow is one exported harmonic. Amplitude and limit are in
// milli-units of the channel's base unit.
type HarmonicRow struct {
	Channel        string
	Order          int
	FrequencyHz    float64
	AmplitudeMilli float64
	LimitMilli     float64
	PercentOfLimit float64
	PhaseDegrees   float64
	Status         string
}

var harmonicHeader = []string{
	"channel", "order", "frequency_hz", "amplitude_ma", "limit_ma", "percent_of_limit", "phase_deg", "status",
}

// HarmonicRows flattens every harmonic of every channel
func HarmonicRows(result *analysis.CaptureResult) []HarmonicRow {
	var rows []HarmonicRow
	for _, ch := range result.Channels {
		for _, h := range ch.Harmonics {
			rows = append(rows, HarmonicRow{
				Channel:        ch.ChannelID,
				Order:          h.Order,
				FrequencyHz:    h.Frequency,
				AmplitudeMilli: h.Amplitude * 1000,
				LimitMilli:     h.Limit * 1000,
				PercentOfLimit: h.PercentOfLimit,
				PhaseDegrees:   h.PhaseDegrees,
				Status:         string(h.Status),
			})
		}
	}
	return rows
}

// WriteHarmonicsCSV writes the harmonic table as CSV
func WriteHarmonicsCSV(w io.Writer, result *analysis.CaptureResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(harmonicHeader); err != nil {
		return err
	}

	for _, r := range HarmonicRows(result) {
		record := []string{
			r.Channel,
			strconv.Itoa(r.Order),
			strconv.FormatFloat(r.FrequencyHz, 'f', 2, 64),
			strconv.FormatFloat(r.AmplitudeMilli, 'f', 4, 64),
			strconv.FormatFloat(r.LimitMilli, 'f', 4, 64),
			strconv.FormatFloat(r.PercentOfLimit, 'f', 2, 64),
			strconv.FormatFloat(r.PhaseDegrees, 'f', 2, 64),
			r.Status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

const (
	harmonicsSheet = "Harmonics"
	summarySheet   = "Summary"
)

// ExportXLSX writes a workbook with a harmonic sheet and a per-channel
// summary sheet
func ExportXLSX(path string, result *analysis.CaptureResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", harmonicsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(harmonicHeader))
	for i, h := range harmonicHeader {
		header[i] = h
	}
	if err := setRow(f, harmonicsSheet, 1, header); err != nil {
		return err
	}
	for i, r := range HarmonicRows(result) {
		row := []any{r.Channel, r.Order, r.FrequencyHz, r.AmplitudeMilli, r.LimitMilli, r.PercentOfLimit, r.PhaseDegrees, r.Status}
		if err := setRow(f, harmonicsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	summaryHeader := []any{"channel", "type", "unit", "fundamental_hz", "rms", "peak", "crest_factor", "thd_percent", "tdd_percent", "power_factor", "compliant", "violations", "filter"}
	if err := setRow(f, summarySheet, 1, summaryHeader); err != nil {
		return err
	}
	for i, ch := range result.Channels {
		row := []any{
			ch.ChannelID, string(ch.SignalType), ch.Unit, ch.FundamentalHz,
			ch.RMS, ch.Peak, ch.CrestFactor, ch.THDPercent, ch.TDDPercent, ch.PowerFactor,
			ch.Compliant, joinOrders(ch.ViolationOrders(), " "), ch.FilterDescriptor,
		}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
	return nil
}
