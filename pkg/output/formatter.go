package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/analysis"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// Formatter renders analysis output
type Formatter interface {
	Format(data any, pretty bool) ([]byte, error)
}

// NewFormatter returns the formatter for json, yaml, csv or table
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return &JSONFormatter{}, nil
	case "yaml", "yml":
		return &YAMLFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	case "table", "text":
		return &TableFormatter{}, nil
	default:
		return nil, common.NewInvalidConfiguration(fmt.Sprintf("unknown output format %q", format), nil)
	}
}

// JSONFormatter writes JSON. NaN and Inf, which JSON cannot carry, are
// written as 0.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any, pretty bool) ([]byte, error) {
	out, err := marshalJSON(data, pretty)
	if err != nil && strings.Contains(err.Error(), "unsupported value") {
		out, err = marshalJSON(sanitizeForJSON(data), pretty)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(out, '\n'), nil
}

func marshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// YAMLFormatter writes YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any, _ bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVFormatter writes one row per harmonic for a capture, or one row per
// channel for a batch
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data any, _ bool) ([]byte, error) {
	var buf bytes.Buffer

	switch v := data.(type) {
	case *analysis.CaptureResult:
		if err := WriteHarmonicsCSV(&buf, v); err != nil {
			return nil, err
		}
	case []BatchEntry:
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"file", "channel", "thd_percent", "tdd_percent", "power_factor", "compliant", "violations", "error"}); err != nil {
			return nil, err
		}
		for _, e := range v {
			if e.Err != nil || e.Result == nil {
				if err := w.Write([]string{e.Source, "", "", "", "", "", "", errorText(e.Err)}); err != nil {
					return nil, err
				}
				continue
			}
			for _, ch := range e.Result.Channels {
				row := []string{
					e.Source,
					ch.ChannelID,
					strconv.FormatFloat(ch.THDPercent, 'f', 4, 64),
					strconv.FormatFloat(ch.TDDPercent, 'f', 4, 64),
					strconv.FormatFloat(ch.PowerFactor, 'f', 4, 64),
					strconv.FormatBool(ch.Compliant),
					joinOrders(ch.ViolationOrders(), " "),
					"",
				}
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("csv output does not support %T", data)
	}

	return buf.Bytes(), nil
}

// TableFormatter writes an aligned per-channel summary. Precision sets the
// decimals of the THD and TDD columns, 2 when zero.
type TableFormatter struct {
	Precision int
}

func (f *TableFormatter) Format(data any, _ bool) ([]byte, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	precision := f.Precision
	if precision <= 0 {
		precision = 2
	}

	header := "CHANNEL\tTYPE\tFUND(Hz)\tRMS\tPEAK\tCF\tTHD%\tTDD%\tPF\tIEC\tVIOLATIONS"
	writeRows := func(prefix string, r *analysis.CaptureResult) {
		for _, ch := range r.Channels {
			fmt.Fprintf(tw, "%s%s\t%s\t%.2f\t%.4f %s\t%.4f %s\t%.3f\t%.*f\t%.*f\t%.4f\t%s\t%s\n",
				prefix, ch.ChannelID, ch.SignalType, ch.FundamentalHz,
				ch.RMS, ch.Unit, ch.Peak, ch.Unit, ch.CrestFactor,
				precision, ch.THDPercent, precision, ch.TDDPercent, ch.PowerFactor,
				verdict(ch.Compliant), joinOrders(ch.ViolationOrders(), ","))
		}
	}

	switch v := data.(type) {
	case *analysis.CaptureResult:
		fmt.Fprintln(tw, header)
		writeRows("", v)
	case []BatchEntry:
		fmt.Fprintln(tw, "FILE\t"+header+"\tERROR")
		for _, e := range v {
			if e.Err != nil || e.Result == nil {
				fmt.Fprintf(tw, "%s\t\t\t\t\t\t\t\t\t\t\t\t%s\n", e.Source, errorText(e.Err))
				continue
			}
			writeRows(e.Source+"\t", e.Result)
		}
	default:
		return nil, fmt.Errorf("table output does not support %T", data)
	}

	if err := tw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func verdict(compliant bool) string {
	if compliant {
		return "PASS"
	}
	return "FAIL"
}

func errorText(err error) string {
	if err == nil {
		return "no result"
	}
	return err.Error()
}

func joinOrders(orders []int, sep string) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = "H" + strconv.Itoa(o)
	}
	return strings.Join(parts, sep)
}

// sanitizeForJSON rebuilds data as maps and slices with NaN and Inf
// replaced by 0, honouring json tags
func sanitizeForJSON(data any) any {
	if data == nil {
		return nil
	}
	return sanitizeValue(reflect.ValueOf(data))
}

func sanitizeValue(val reflect.Value) any {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0.0
		}
		return f
	case reflect.Struct:
		result := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag := field.Tag.Get("json"); tag != "" {
				if tag == "-" {
					continue
				}
				if parts := strings.Split(tag, ","); parts[0] != "" {
					name = parts[0]
				}
			}
			result[name] = sanitizeValue(val.Field(i))
		}
		return result
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.IsNil() {
			return nil
		}
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			result[i] = sanitizeValue(val.Index(i))
		}
		return result
	case reflect.Map:
		result := make(map[string]any)
		for _, key := range val.MapKeys() {
			result[fmt.Sprintf("%v", key.Interface())] = sanitizeValue(val.MapIndex(key))
		}
		return result
	default:
		if val.CanInterface() {
			return val.Interface()
		}
		return nil
	}
}
