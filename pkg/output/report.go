package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/compliance"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis/config"
)

var (
	titleCaser = cases.Title(language.English)
	printer    = message.NewPrinter(language.English)
)

const (
	wideRule   = "================================================================================"
	narrowRule = "--------------------------------------------------------------------------------"
	fileRule   = "============================================================"
)

// BatchEntry is the outcome for one file of a batch run
type BatchEntry struct {
	Source     string                  `json:"source" yaml:"source"`
	Result     *analysis.CaptureResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error      string                  `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS float64                 `json:"duration_ms" yaml:"duration_ms"`
	Err        error                   `json:"-" yaml:"-"`
}

// Report writes the full text report for one capture
func Report(w io.Writer, result *analysis.CaptureResult, generated time.Time) error {
	var b strings.Builder

	b.WriteString("\n" + wideRule + "\n")
	b.WriteString("          HARMONIC ANALYSIS REPORT\n")
	b.WriteString("          IEC 61000-3-2 Compliance\n")
	b.WriteString(wideRule + "\n")
	fmt.Fprintf(&b, "Date: %s\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source: %s\n", orNA(result.Source))
	fmt.Fprintf(&b, "Limits: %s (preset %s, %d harmonics)\n\n", result.LimitTable, result.Preset, result.NumHarmonics)

	for _, ch := range result.Channels {
		writeChannelBlock(&b, ch)
	}

	b.WriteString("\n" + wideRule + "\n")
	b.WriteString("                          SUMMARY\n")
	b.WriteString(wideRule + "\n")
	for _, ch := range result.Channels {
		b.WriteString(summaryLine(ch) + "\n")
	}
	b.WriteString(ComplianceBanner(result) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeChannelBlock(b *strings.Builder, ch *compliance.ChannelResult) {
	prefix := unitPrefix(ch.Unit)

	b.WriteString("\n" + narrowRule + "\n")
	fmt.Fprintf(b, "%s CHANNEL RESULTS\n", ch.ChannelID)
	b.WriteString(narrowRule + "\n")
	fmt.Fprintf(b, "Type: %s\n", titleCaser.String(string(ch.SignalType)))
	switch {
	case ch.Derived:
		b.WriteString("Derived: yes\n")
	case ch.SignalType == config.SignalCurrent:
		fmt.Fprintf(b, "Ratio: %s A/V\n", printer.Sprintf("%g", ch.Ratio))
	default:
		fmt.Fprintf(b, "Probe: x%s\n", printer.Sprintf("%g", ch.Ratio))
	}
	if ch.FilterApplied {
		fmt.Fprintf(b, "Filter: %s\n", ch.FilterDescriptor)
	} else {
		b.WriteString("Filter: none\n")
	}
	b.WriteString(printer.Sprintf("Samples: %d at %.0f Hz\n", ch.Samples, ch.SampleRate))
	fmt.Fprintf(b, "Fundamental: %.2f Hz\n", ch.FundamentalHz)
	b.WriteString(printer.Sprintf("RMS: %.2f %s\n", ch.RMS*1000, prefix))
	b.WriteString(printer.Sprintf("Peak: %.2f %s\n", ch.Peak*1000, prefix))
	fmt.Fprintf(b, "Crest Factor: %.3f\n", ch.CrestFactor)
	fmt.Fprintf(b, "THD: %.2f %%\n", ch.THDPercent)
	fmt.Fprintf(b, "TDD: %.2f %%\n", ch.TDDPercent)
	fmt.Fprintf(b, "Power Factor: %.4f\n", ch.PowerFactor)
	fmt.Fprintf(b, "IEC 61000-3-2: %s\n", passed(ch.Compliant))

	if len(ch.Violations) > 0 {
		over := make([]string, len(ch.Violations))
		for i, v := range ch.Violations {
			over[i] = fmt.Sprintf("H%d (%.1f%%)", v.Order, v.PercentOfLimit)
		}
		fmt.Fprintf(b, "Harmonics over limit: %s\n", strings.Join(over, ", "))
	}

	fmt.Fprintf(b, "\nOrder  Freq(Hz)   Amp(%s)      Limit(%s)   %%        Phase(deg)  Status\n", prefix, prefix)
	b.WriteString(strings.Repeat("-", 75) + "\n")
	for _, h := range ch.Harmonics {
		if h.Status == compliance.StatusFundamental {
			fmt.Fprintf(b, "  %2d   %8.1f   %10.2f   %8s   %7s   %8.1f   FUND\n",
				h.Order, h.Frequency, h.Amplitude*1000, "---", "---", h.PhaseDegrees)
			continue
		}
		fmt.Fprintf(b, "  %2d   %8.1f   %10.2f   %8.2f   %6.1f%%   %8.1f   %s\n",
			h.Order, h.Frequency, h.Amplitude*1000, h.Limit*1000, h.PercentOfLimit, h.PhaseDegrees, h.Status)
	}
}

func summaryLine(ch *compliance.ChannelResult) string {
	return fmt.Sprintf("%s: THD=%.2f%%, TDD=%.2f%%, PF=%.4f, IEC=%s",
		ch.ChannelID, ch.THDPercent, ch.TDDPercent, ch.PowerFactor, verdict(ch.Compliant))
}

// ComplianceBanner is the one-line verdict. Only measured current
// channels are judged; the derived channel is shown for reference.
func ComplianceBanner(result *analysis.CaptureResult) string {
	var current, failed []string
	diffInfo := ""

	for _, ch := range result.Channels {
		if ch.Derived {
			diffInfo += fmt.Sprintf(" | %s: RMS=%.2f%s THD=%.1f%%", ch.ChannelID, ch.RMS*1000, unitPrefix(ch.Unit), ch.THDPercent)
			continue
		}
		if ch.SignalType != config.SignalCurrent {
			continue
		}
		current = append(current, ch.ChannelID)
		if !ch.Compliant {
			failed = append(failed, ch.ChannelID)
		}
	}

	switch {
	case len(current) == 0:
		return "Analysis complete" + diffInfo
	case len(failed) == 0:
		return "IEC 61000-3-2: PASSED" + diffInfo
	default:
		return fmt.Sprintf("IEC 61000-3-2: %s FAILED%s", strings.Join(failed, " "), diffInfo)
	}
}

// BatchReport writes the per-file summary of a batch run
func BatchReport(w io.Writer, entries []BatchEntry, generated time.Time) error {
	var b strings.Builder

	b.WriteString(wideRule + "\n")
	b.WriteString("          BATCH HARMONIC ANALYSIS REPORT\n")
	b.WriteString(wideRule + "\n")
	fmt.Fprintf(&b, "Date: %s\n", generated.Format("2006-01-02 15:04:05"))

	failedFiles, nonCompliant := 0, 0
	for i, e := range entries {
		b.WriteString("\n" + fileRule + "\n")
		fmt.Fprintf(&b, "File %d: %s\n", i+1, e.Source)
		b.WriteString(fileRule + "\n\n")

		if e.Err != nil || e.Result == nil {
			failedFiles++
			msg := e.Error
			if msg == "" {
				msg = errorText(e.Err)
			}
			fmt.Fprintf(&b, "ERROR: %s\n", msg)
			continue
		}
		if !e.Result.Compliant() {
			nonCompliant++
		}
		for _, ch := range e.Result.Channels {
			b.WriteString(summaryLine(ch) + "\n")
			if len(ch.Violations) > 0 {
				fmt.Fprintf(&b, "  Over limit: %s\n", joinOrders(ch.ViolationOrders(), ", "))
			}
		}
	}

	b.WriteString("\n" + wideRule + "\n")
	b.WriteString(printer.Sprintf("Files: %d, failed: %d, non-compliant: %d\n", len(entries), failedFiles, nonCompliant))

	_, err := io.WriteString(w, b.String())
	return err
}

// unitPrefix turns A into mA and V/A into mV/mA
func unitPrefix(unit string) string {
	return "m" + strings.ReplaceAll(unit, "/", "/m")
}

func passed(compliant bool) string {
	if compliant {
		return "PASSED"
	}
	return "FAILED"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
