package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
)

const (
	annotationLabel = "EDF Annotations"
	maxRecordBytes  = 61440
)

// EDFOptions controls EDF import and export.
type EDFOptions struct {
	// Channels are the signal indexes read as channel1 and channel2. Nil
	// picks the first two non-annotation signals.
	Channels []int
	// SamplingRate is required for export and must be a whole number of Hz.
	SamplingRate float64
	PatientID    string
	RecordingID  string
	Labels       [2]string
}

// Recording is an imported EDF file.
type Recording struct {
	StartTime    time.Time
	SamplingRate float64
	Labels       [2]string
	Samples      []analysis.Sample
}

// edfHeader is the part of the header the reader needs that edf.Reader
// keeps private.
type edfHeader struct {
	start            time.Time
	recordDuration   float64
	labels           []string
	samplesPerRecord []int
}

func peekHeader(r io.ReadSeeker) (*edfHeader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	fixed := make([]byte, 256)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, formatError("edf header: %v", err)
	}

	field := func(b []byte) string { return strings.TrimSpace(string(b)) }

	date, err := time.Parse("02.01.06", field(fixed[168:176]))
	if err != nil {
		return nil, formatError("edf start date: %v", err)
	}
	clock, err := time.Parse("15.04.05", field(fixed[176:184]))
	if err != nil {
		return nil, formatError("edf start time: %v", err)
	}
	duration, err := strconv.ParseFloat(field(fixed[244:252]), 64)
	if err != nil || duration <= 0 {
		return nil, formatError("edf record duration %q", field(fixed[244:252]))
	}
	count, err := strconv.Atoi(field(fixed[252:256]))
	if err != nil || count < 1 {
		return nil, formatError("edf signal count %q", field(fixed[252:256]))
	}

	signals := make([]byte, count*256)
	if _, err := io.ReadFull(r, signals); err != nil {
		return nil, formatError("edf signal headers: %v", err)
	}

	hdr := &edfHeader{
		start: time.Date(date.Year(), date.Month(), date.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC),
		recordDuration:   duration,
		labels:           make([]string, count),
		samplesPerRecord: make([]int, count),
	}
	// signal header fields are stored column by column; samples per record
	// follow label, transducer, dimension, four ranges and prefiltering
	sprOffset := count * (16 + 80 + 8*5 + 80)
	for i := 0; i < count; i++ {
		hdr.labels[i] = field(signals[i*16 : (i+1)*16])
		spr, err := strconv.Atoi(field(signals[sprOffset+i*8 : sprOffset+(i+1)*8]))
		if err != nil {
			return nil, formatError("edf samples per record of signal %d: %v", i, err)
		}
		hdr.samplesPerRecord[i] = spr
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return hdr, nil
}

func (h *edfHeader) pickChannels(requested []int) ([2]int, error) {
	var picked [2]int
	if requested == nil {
		n := 0
		for i, label := range h.labels {
			if label == annotationLabel {
				continue
			}
			picked[n] = i
			n++
			if n == 2 {
				return picked, nil
			}
		}
		return picked, formatError("edf file needs two signals, found %d", n)
	}

	if len(requested) != 2 {
		return picked, formatError("exactly two channels must be selected, got %d", len(requested))
	}
	for i, idx := range requested {
		if idx < 0 || idx >= len(h.labels) {
			return picked, formatError("edf signal %d out of range", idx)
		}
		if h.labels[idx] == annotationLabel {
			return picked, formatError("edf signal %d is an annotation signal", idx)
		}
		picked[i] = idx
	}
	return picked, nil
}

// ReadEDF reads two signals of an EDF/EDF+ file. Both signals must share a
// sampling rate. Timestamps count from the recorded start time.
func ReadEDF(r io.ReadSeeker, opts EDFOptions) (*Recording, error) {
	hdr, err := peekHeader(r)
	if err != nil {
		return nil, err
	}
	channels, err := hdr.pickChannels(opts.Channels)
	if err != nil {
		return nil, err
	}

	spr := hdr.samplesPerRecord[channels[0]]
	if spr <= 0 || hdr.samplesPerRecord[channels[1]] != spr {
		return nil, formatError("edf signals %d and %d have different sampling rates", channels[0], channels[1])
	}
	fs := float64(spr) / hdr.recordDuration

	reader, err := edf.Open(r)
	if err != nil {
		return nil, formatError("%v", err)
	}

	var series [2][]float64
	for i, idx := range channels {
		sr, err := reader.Signal(idx)
		if err != nil {
			return nil, formatError("%v", err)
		}
		if series[i], err = readSignal(sr, spr); err != nil {
			return nil, err
		}
	}

	n := min(len(series[0]), len(series[1]))
	start := float64(hdr.start.Unix())
	samples := make([]analysis.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = analysis.Sample{
			Timestamp: start + float64(i)/fs,
			Channel1:  series[0][i],
			Channel2:  series[1][i],
		}
	}
	if err := validate(samples); err != nil {
		return nil, err
	}

	return &Recording{
		StartTime:    hdr.start,
		SamplingRate: fs,
		Labels:       [2]string{hdr.labels[channels[0]], hdr.labels[channels[1]]},
		Samples:      samples,
	}, nil
}

func readSignal(sr *edf.SignalReader, chunk int) ([]float64, error) {
	var out []float64
	buf := make([]float64, chunk)
	for {
		n, err := sr.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, formatError("edf data: %v", err)
		}
	}
}

// WriteEDF writes samples as a two-signal EDF file of one-second records.
// The final record is padded by repeating the last sample. The start time
// is the first timestamp truncated to the second.
func WriteEDF(w io.WriteSeeker, samples []analysis.Sample, opts EDFOptions) error {
	if len(samples) == 0 {
		return analysis.ErrNoSamples
	}
	fs := opts.SamplingRate
	if fs <= 0 || fs != math.Trunc(fs) {
		return fmt.Errorf("%w: edf export needs a whole sampling rate, got %v", analysis.ErrInvalidConfig, fs)
	}
	spr := int(fs)
	if 2*2*spr > maxRecordBytes {
		return fmt.Errorf("%w: sampling rate %v too high for edf export", analysis.ErrInvalidConfig, fs)
	}

	labels := opts.Labels
	if labels[0] == "" {
		labels[0] = "EEG Channel1"
	}
	if labels[1] == "" {
		labels[1] = "EEG Channel2"
	}

	ch1 := make([]float64, len(samples))
	ch2 := make([]float64, len(samples))
	for i, s := range samples {
		ch1[i], ch2[i] = s.Channel1, s.Channel2
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          opts.PatientID,
		RecordingID:        opts.RecordingID,
		StartTime:          time.Unix(int64(math.Floor(samples[0].Timestamp)), 0).UTC(),
		DataRecordDuration: time.Second,
		SignalCount:        2,
		Signals:            []edf.Signal{signalFor(labels[0], ch1, spr), signalFor(labels[1], ch2, spr)},
	}

	writer, err := edf.Create(w, hdr)
	if err != nil {
		return err
	}

	record := [][]float64{make([]float64, spr), make([]float64, spr)}
	for offset := 0; offset < len(samples); offset += spr {
		for i := 0; i < spr; i++ {
			j := min(offset+i, len(samples)-1)
			record[0][i], record[1][i] = ch1[j], ch2[j]
		}
		if err := writer.WriteRecord(record); err != nil {
			return fmt.Errorf("writing edf record: %w", err)
		}
	}
	return writer.Close()
}

// signalFor sizes the physical range to the data with a 1 uV margin.
func signalFor(label string, values []float64, spr int) edf.Signal {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return edf.Signal{
		Label:             label,
		TransducerType:    "EEG electrode",
		PhysicalDimension: "uV",
		PhysicalMin:       math.Floor(lo) - 1,
		PhysicalMax:       math.Ceil(hi) + 1,
		DigitalMin:        math.MinInt16,
		DigitalMax:        math.MaxInt16,
		SamplesPerRecord:  spr,
	}
}
