package waveform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// ParseCSV reads an oscilloscope waveform export.
//
// Line 1 names the channel columns (CH1, CH2 or both). Line 2 carries the
// start offset and sample increment: fields 3 and 4 for two channels, 2 and
// 3 for one. Data rows are index followed by one value per channel.
func ParseCSV(r io.Reader, source string) (*Capture, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header1, err := reader.Read()
	if err != nil {
		return nil, common.NewMalformedInput(source, "missing channel header", err)
	}
	if len(header1) > 0 && strings.HasPrefix(strings.TrimSpace(header1[0]), "Model:") {
		return nil, common.NewMalformedInput(source, "file looks like an instrument settings export, not waveform data", nil)
	}

	header2, err := reader.Read()
	if err != nil {
		return nil, common.NewMalformedInput(source, "missing timing header", err)
	}

	hasCH1 := containsField(header1, string(ChannelCH1))
	hasCH2 := containsField(header1, string(ChannelCH2))

	var columns []ChannelID
	startField, incField := 2, 3
	switch {
	case hasCH1 && hasCH2:
		columns = []ChannelID{ChannelCH1, ChannelCH2}
		startField, incField = 3, 4
	case hasCH1:
		columns = []ChannelID{ChannelCH1}
	case hasCH2:
		columns = []ChannelID{ChannelCH2}
	default:
		return nil, common.NewMalformedInput(source, "header declares neither CH1 nor CH2", nil)
	}

	if len(header2) <= incField {
		return nil, common.NewMalformedInput(source,
			fmt.Sprintf("timing header has %d fields, expected at least %d", len(header2), incField+1), nil)
	}
	start, err := parseField(header2[startField])
	if err != nil {
		return nil, common.NewMalformedInput(source, "invalid start time", err)
	}
	increment, err := parseField(header2[incField])
	if err != nil {
		return nil, common.NewMalformedInput(source, "invalid sample increment", err)
	}
	if increment <= 0 {
		return nil, common.NewMalformedInput(source, fmt.Sprintf("sample increment must be positive, got %g", increment), nil)
	}

	capture := &Capture{
		Source:   source,
		Interval: increment,
		Channels: make(map[ChannelID][]float64, len(columns)),
	}

	line := 2
	firstIndex := 0.0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, common.NewMalformedInput(source, fmt.Sprintf("line %d", line), err)
		}
		if len(record) < len(columns)+1 {
			return nil, common.NewMalformedInput(source,
				fmt.Sprintf("line %d: expected %d columns, got %d", line, len(columns)+1, len(record)), nil)
		}

		index, err := parseField(record[0])
		if err != nil {
			return nil, common.NewMalformedInput(source, fmt.Sprintf("line %d: index", line), err)
		}
		if line == 3 {
			firstIndex = index
		}

		for i, id := range columns {
			v, err := parseField(record[i+1])
			if err != nil {
				return nil, common.NewMalformedInput(source, fmt.Sprintf("line %d: %s", line, id), err)
			}
			capture.Channels[id] = append(capture.Channels[id], v)
		}
	}

	if capture.Points() == 0 {
		return nil, common.NewMalformedInput(source, "capture has no data rows", nil)
	}

	capture.StartTime = start + firstIndex*increment

	return capture, nil
}

// LoadCSVFile opens and parses a capture file
func LoadCSVFile(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	return ParseCSV(f, filepath.Base(path))
}

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == want {
			return true
		}
	}
	return false
}

func parseField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
