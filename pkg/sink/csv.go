package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

// CSVSink writes one <table>.csv file per table.
type CSVSink struct {
	Directory string
}

func NewCSVSink(directory string) (*CSVSink, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}
	return &CSVSink{Directory: directory}, nil
}

func (c *CSVSink) Name() string {
	return "csv"
}

func (c *CSVSink) path(table string) string {
	return filepath.Join(c.Directory, table+".csv")
}

func (c *CSVSink) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	path := c.path(table)

	writeHeader := false
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeHeader = true
	case err != nil:
		return err
	case info.Size() == 0:
		writeHeader = true
	}

	if len(records) == 0 && !writeHeader {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if writeHeader {
		err = gocsv.Marshal(&records, file)
	} else {
		err = gocsv.MarshalWithoutHeaders(&records, file)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return file.Close()
}

// ReplacePositions writes to a temporary file first so readers never see a partial table.
func (c *CSVSink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	path := c.path(table)

	temp, err := os.CreateTemp(c.Directory, "."+table+"-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(temp.Name())

	if err := gocsv.Marshal(&records, temp); err != nil {
		temp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		return err
	}

	return os.Rename(temp.Name(), path)
}

func (c *CSVSink) Close(ctx context.Context) error {
	return nil
}

// ReadCSV loads a table written by the csv sink.
func ReadCSV(path string) ([]transit.GeometryRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []transit.GeometryRecord
	if err := gocsv.UnmarshalFile(file, &records); err != nil {
		return nil, err
	}
	return records, nil
}
