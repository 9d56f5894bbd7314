package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileStore writes each record as indented JSON into one directory. Two
// locks within the same second share a file name; the later one wins.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string { return s.dir }

// Path returns where r is (or would be) stored.
func (s *FileStore) Path(r *Record) string {
	return filepath.Join(s.dir, r.FileName())
}

func (s *FileStore) Save(_ context.Context, r *Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	path := s.Path(r)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) Latest(ctx context.Context) (*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[len(records)-1], nil
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(records))
	for i, r := range records {
		out[i] = r.Summary()
	}
	return out, nil
}

// load reads every design_*.json in timestamp order. Unreadable files are
// skipped so one corrupt record does not hide the rest.
func (s *FileStore) load() ([]*Record, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "design_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	slices.Sort(matches)

	records := make([]*Record, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read record: %w", err)
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		if r.Timestamp == "" {
			r.Timestamp = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "design_"), ".json")
		}
		records = append(records, &r)
	}
	return records, nil
}
