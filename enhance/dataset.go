package enhance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aluiziolira/enhance-goodreads-export/models"
)

// ErrDatasetFormat indicates the export file is missing required columns or
// holds malformed rows. It is raised before any network activity.
type ErrDatasetFormat struct {
	Err error
}

func (e ErrDatasetFormat) Error() string {
	return fmt.Errorf("dataset: %w", e.Err).Error()
}

func (e ErrDatasetFormat) Unwrap() error {
	return e.Err
}

// requiredColumns is the minimal column set any export variant carries.
var requiredColumns = []string{
	models.ColBookID,
	models.ColTitle,
	models.ColAuthor,
	models.ColDateRead,
	models.ColExclusiveShelf,
}

// Dataset is the in-memory export: the column order to preserve on disk
// plus one record per row.
type Dataset struct {
	Columns []string
	Records []*models.Record
}

// LoadDataset reads a comma-separated export file. The header must be a
// superset of the required minimal column set.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrDatasetFormat{Err: fmt.Errorf("open export file: %w", err)}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, ErrDatasetFormat{Err: fmt.Errorf("read column names: %w", err)}
	}
	have := make(map[string]struct{}, len(header))
	for _, col := range header {
		have[col] = struct{}{}
	}
	for _, col := range requiredColumns {
		if _, ok := have[col]; !ok {
			return nil, ErrDatasetFormat{Err: fmt.Errorf("export file does not contain the standard column %q", col)}
		}
	}

	ds := &Dataset{Columns: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ErrDatasetFormat{Err: fmt.Errorf("read export row: %w", err)}
		}
		ds.Records = append(ds.Records, models.NewRecord(header, row))
	}
	return ds, nil
}

// EnsureDerivedColumns appends the derived columns to the column order,
// once, after all source columns.
func (d *Dataset) EnsureDerivedColumns() {
	have := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		have[col] = struct{}{}
	}
	for _, col := range []string{models.ColReadDates, models.ColGenres, models.ColNRatings} {
		if _, ok := have[col]; !ok {
			d.Columns = append(d.Columns, col)
		}
	}
}

// ByID indexes the records by book id.
func (d *Dataset) ByID() map[string]*models.Record {
	index := make(map[string]*models.Record, len(d.Records))
	for _, rec := range d.Records {
		index[rec.BookID()] = rec
	}
	return index
}

// Write persists the full dataset, overwriting the file. Every record is
// written, not just processed ones, so the file is always a complete
// checkpoint of the run.
func (d *Dataset) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(d.Columns); err != nil {
		f.Close()
		return fmt.Errorf("write export header: %w", err)
	}
	row := make([]string, len(d.Columns))
	for _, rec := range d.Records {
		for i, col := range d.Columns {
			row[i] = rec.Get(col)
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write export row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush export file: %w", err)
	}
	return f.Close()
}
