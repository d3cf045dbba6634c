package dataset

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// Option configures CSV reading.
type Option func(*readOptions)

type readOptions struct {
	naValues []string
	comma    rune
}

// WithNAValues replaces the set of cell values treated as missing.
func WithNAValues(values []string) Option {
	return func(o *readOptions) {
		o.naValues = values
	}
}

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(o *readOptions) {
		o.comma = r
	}
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts ...Option) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataLoadError(path, "cannot open file", err)
	}
	defer f.Close()
	return ReadCSV(f, path, opts...)
}

// ReadCSV reads a header line followed by records. Every record must have as
// many fields as the header.
func ReadCSV(r io.Reader, source string, opts ...Option) (*Frame, error) {
	o := readOptions{naValues: DefaultNAValues, comma: ','}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)
	reader.Comma = o.comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataLoadError(source, "file is empty", nil)
	}
	if err != nil {
		return nil, errors.NewDataLoadError(source, "malformed header", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataLoadError(source, "malformed record", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.NewDataLoadError(source, "no data records", nil)
	}

	frame, err := NewFrame(source, header, records, o.naValues)
	if err != nil {
		return nil, err
	}

	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.PathKey, source,
		log.SamplesKey, frame.NumRows(),
		log.FeaturesKey, len(header),
	)
	return frame, nil
}
