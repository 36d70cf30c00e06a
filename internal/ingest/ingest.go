// Package ingest converts EEG recordings between files and samples. It
// reads two-channel CSV exports and EDF/EDF+ files and writes sessions back
// out as EDF.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
)

// Formats accepted by Read.
const (
	FormatCSV = "csv"
	FormatEDF = "edf"
)

// ErrFormat marks input that is not a readable recording.
var ErrFormat = errors.New("malformed recording")

func formatError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// validate rejects empty recordings and the sample defects the store refuses.
func validate(samples []analysis.Sample) error {
	if len(samples) == 0 {
		return formatError("recording has no samples")
	}
	if err := analysis.ValidateSamples(samples); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}

// DetectFormat picks a format from a file name, falling back to the
// content type. It returns "" when neither identifies one.
func DetectFormat(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".edf":
		return FormatEDF
	case ".csv", ".txt":
		return FormatCSV
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/csv", "text/plain":
		return FormatCSV
	case "application/octet-stream", "application/edf":
		return FormatEDF
	}
	return ""
}

// Read parses a recording in the given format. samplingRate spaces CSV
// samples that carry no timestamps and is ignored for EDF.
func Read(format string, r io.ReadSeeker, samplingRate float64) ([]analysis.Sample, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, samplingRate)
	case FormatEDF:
		rec, err := ReadEDF(r, EDFOptions{})
		if err != nil {
			return nil, err
		}
		return rec.Samples, nil
	}
	return nil, formatError("unsupported format %q", format)
}
