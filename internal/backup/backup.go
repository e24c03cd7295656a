// Package backup writes and reads the CSV records kept for every object
// before it is deleted.
//
// Flat categories (networks, ranges, hosts) use the columns
// name,description,type,value. Groups use name,description,type,objects,literals,pass
// where objects and literals are JSON arrays and pass is the deletion
// iteration that removed the group.
package backup

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/log"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

// ErrMissingBackup is returned when a backup file does not exist
var ErrMissingBackup = errors.New("backup file not found")

var (
	flatHeader  = []string{"name", "description", "type", "value"}
	groupHeader = []string{"name", "description", "type", "objects", "literals", "pass"}
)

// Fetcher returns full object detail for backup
type Fetcher interface {
	FetchNetwork(ctx context.Context, category model.Category, id string) (*model.NetworkObject, error)
	FetchGroup(ctx context.Context, id string) (*model.GroupObject, error)
}

// Store places backup files in a directory
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store writing to dir. now dates the file names and
// defaults to time.Now.
func NewStore(dir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{dir: dir, now: now}
}

// Dir returns the backup directory
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the backup file name for a category. An empty date gives
// the canonical un-dated name.
func FileName(category model.Category, date string) string {
	base := "FMC-" + string(category) + "-object-backup"
	if category.IsGroup() {
		base = "FMC-network-group-object-backup"
	}
	if date != "" {
		base += "-" + date
	}
	return base + ".csv"
}

// Path returns the path of a category's backup file for date
func (s *Store) Path(category model.Category, date string) string {
	return filepath.Join(s.dir, FileName(category, date))
}

// TodayPath is the path written by the current run
func (s *Store) TodayPath(category model.Category) string {
	return s.Path(category, s.now().Format(time.DateOnly))
}

// WriteFlat fetches the detail of every object and writes it to today's
// backup file. Pass 1 replaces any earlier file, later passes append to it.
// Objects that cannot be fetched are reported and left out; fatal errors abort.
func (s *Store) WriteFlat(ctx context.Context, f Fetcher, category model.Category, objects []model.Object, pass int) (string, []model.ItemError, error) {
	var records []model.FlatRecord
	var failures []model.ItemError
	for _, o := range objects {
		obj, err := f.FetchNetwork(ctx, category, o.ID)
		if err != nil {
			if fmc.IsFatal(err) {
				return "", failures, err
			}
			log.Error("Unable to back up object", "category", category, "name", o.Name, "error", err)
			failures = append(failures, model.ItemError{Name: o.Name, ID: o.ID, Message: err.Error()})
			continue
		}
		records = append(records, obj.Record())
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.Description, r.Type, r.Value})
	}
	path := s.TodayPath(category)
	if err := writeRows(path, flatHeader, rows, pass <= 1); err != nil {
		return "", failures, err
	}
	log.Info("Backed up objects", "category", category, "count", len(records), "file", path)
	return path, failures, nil
}

// WriteGroups fetches the detail of every group and records it with pass.
// Pass 1 starts a fresh file; later passes append to it.
func (s *Store) WriteGroups(ctx context.Context, f Fetcher, groups []model.Object, pass int) (string, []model.ItemError, error) {
	var records []model.GroupRecord
	var failures []model.ItemError
	for _, o := range groups {
		g, err := f.FetchGroup(ctx, o.ID)
		if err != nil {
			if fmc.IsFatal(err) {
				return "", failures, err
			}
			log.Error("Unable to back up group", "name", o.Name, "error", err)
			failures = append(failures, model.ItemError{Name: o.Name, ID: o.ID, Message: err.Error()})
			continue
		}
		records = append(records, g.Record(pass))
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row, err := encodeGroup(r)
		if err != nil {
			return "", failures, err
		}
		rows = append(rows, row)
	}
	path := s.TodayPath(model.NetworkGroups)
	if err := writeRows(path, groupHeader, rows, pass <= 1); err != nil {
		return "", failures, err
	}
	log.Info("Backed up groups", "pass", pass, "count", len(records), "file", path)
	return path, failures, nil
}

// writeRows writes rows to path, truncating or appending. The header is
// written only when the file is empty.
func writeRows(path string, header []string, rows [][]string, truncate bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("writing backup file: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}
	return file.Close()
}

// ReadFlat loads a flat backup file. Cells are kept as written; only the
// type is trimmed.
func ReadFlat(path string) ([]model.FlatRecord, error) {
	rows, err := readRows(path, flatHeader)
	if err != nil {
		return nil, err
	}
	records := make([]model.FlatRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < len(flatHeader) {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", path, i+1, len(row), len(flatHeader))
		}
		records = append(records, model.FlatRecord{
			Name:        row[0],
			Description: row[1],
			Type:        strings.TrimSpace(row[2]),
			Value:       row[3],
		})
	}
	return records, nil
}

// ReadGroups loads a group backup file
func ReadGroups(path string) ([]model.GroupRecord, error) {
	rows, err := readRows(path, groupHeader)
	if err != nil {
		return nil, err
	}
	records := make([]model.GroupRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < len(groupHeader) {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", path, i+1, len(row), len(groupHeader))
		}
		rec, err := decodeGroup(row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readRows returns the data rows of a CSV file. A header row is skipped when
// present; files without one are read positionally.
func readRows(path string, header []string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingBackup, path, err)
		}
		return nil, fmt.Errorf("opening backup file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var data [][]string
	for i, row := range rows {
		if i == 0 && isHeader(row, header) {
			continue
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		data = append(data, row)
	}
	return data, nil
}

func isHeader(row, header []string) bool {
	if len(row) < len(header) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(strings.ToLower(row[i])) != h {
			return false
		}
	}
	return true
}
