package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
)

// timestamp layouts tried after plain unix seconds
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ReadCSV reads a recording with a header row naming timestamp, channel1
// and channel2 columns in any order. Timestamps are unix seconds or ISO
// date-times. When the file has no timestamp column, samples are spaced at
// samplingRate starting from zero, and samplingRate must be positive.
func ReadCSV(r io.Reader, samplingRate float64) ([]analysis.Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, formatError("empty csv")
	}
	if err != nil {
		return nil, formatError("csv header: %v", err)
	}

	cols := map[string]int{"timestamp": -1, "channel1": -1, "channel2": -1}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := cols[key]; ok {
			cols[key] = i
		}
	}
	if cols["channel1"] < 0 || cols["channel2"] < 0 {
		return nil, formatError("csv header must name channel1 and channel2")
	}
	hasTimestamp := cols["timestamp"] >= 0
	if !hasTimestamp && samplingRate <= 0 {
		return nil, formatError("csv has no timestamp column and no sampling rate was given")
	}

	var samples []analysis.Sample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, formatError("csv line %d: %v", line, err)
		}

		var s analysis.Sample
		if s.Channel1, err = strconv.ParseFloat(strings.TrimSpace(record[cols["channel1"]]), 64); err != nil {
			return nil, formatError("csv line %d: channel1: %v", line, err)
		}
		if s.Channel2, err = strconv.ParseFloat(strings.TrimSpace(record[cols["channel2"]]), 64); err != nil {
			return nil, formatError("csv line %d: channel2: %v", line, err)
		}
		if hasTimestamp {
			if s.Timestamp, err = parseTimestamp(record[cols["timestamp"]]); err != nil {
				return nil, formatError("csv line %d: timestamp: %v", line, err)
			}
		} else {
			s.Timestamp = float64(len(samples)) / samplingRate
		}
		samples = append(samples, s)
	}

	if err := validate(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return float64(t.UnixNano()) / 1e9, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// WriteCSV writes samples with a timestamp,channel1,channel2 header.
func WriteCSV(w io.Writer, samples []analysis.Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "channel1", "channel2"}); err != nil {
		return err
	}
	row := make([]string, 3)
	for _, s := range samples {
		row[0] = strconv.FormatFloat(s.Timestamp, 'f', -1, 64)
		row[1] = strconv.FormatFloat(s.Channel1, 'g', -1, 64)
		row[2] = strconv.FormatFloat(s.Channel2, 'g', -1, 64)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
